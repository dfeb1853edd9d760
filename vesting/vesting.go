// Copyright 2025 Legion Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vesting implements per-investor release schedules: linear,
// optionally cliffed, optionally quantized to whole epochs. The sale
// engine creates one escrow per investor on their first allocation
// claim and the investor releases from it over time.
package vesting

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

var (
	ErrZeroDuration    = errors.New("vesting duration must be non-zero")
	ErrCliffTooLong    = errors.New("cliff exceeds vesting duration")
	ErrEpochTooLong    = errors.New("epoch exceeds vesting duration")
	ErrZeroBeneficiary = errors.New("beneficiary address is zero")
	ErrNegativeAmount  = errors.New("allocation amount is negative")
	ErrEscrowExists    = errors.New("escrow already exists for beneficiary")
)

// Schedule describes a release curve. All times are absolute unix
// seconds; durations are seconds. EpochDuration of zero means
// continuous linear release.
type Schedule struct {
	Start         int64
	Duration      int64
	CliffDuration int64
	EpochDuration int64
}

func (s Schedule) Validate() error {
	if s.Duration <= 0 {
		return ErrZeroDuration
	}
	if s.CliffDuration < 0 || s.CliffDuration > s.Duration {
		return ErrCliffTooLong
	}
	if s.EpochDuration < 0 || s.EpochDuration > s.Duration {
		return ErrEpochTooLong
	}
	return nil
}

// CliffEnd is the earliest time any vested amount becomes releasable
func (s Schedule) CliffEnd() int64 {
	return s.Start + s.CliffDuration
}

// End is the time the full allocation has vested
func (s Schedule) End() int64 {
	return s.Start + s.Duration
}

// VestedAt computes the vested portion of total at time now. Nothing
// vests before the cliff end; afterwards vesting is linear in elapsed
// time, with elapsed time truncated to whole epoch boundaries when an
// epoch duration is set.
func (s Schedule) VestedAt(total *big.Int, now int64) *big.Int {
	total = common.CloneAmount(total)
	if now < s.CliffEnd() || now < s.Start {
		return new(big.Int)
	}
	elapsed := now - s.Start
	if s.EpochDuration > 0 {
		elapsed = (elapsed / s.EpochDuration) * s.EpochDuration
		if elapsed < s.CliffDuration {
			// Quantization pulled us back before the cliff
			return new(big.Int)
		}
	}
	if elapsed >= s.Duration {
		return total
	}
	vested := new(big.Int).Mul(total, big.NewInt(elapsed))
	return vested.Div(vested, big.NewInt(s.Duration))
}

// Escrow holds one investor's claimed allocation and tracks releases
// against the schedule. Released amounts are non-decreasing and never
// exceed the vested-to-date amount.
type Escrow struct {
	beneficiary common.Address
	schedule    Schedule
	total       *big.Int
	released    *big.Int
	mu          sync.Mutex
}

// NewEscrow creates a funded escrow for a beneficiary
func NewEscrow(
	beneficiary common.Address,
	schedule Schedule,
	total *big.Int,
) (*Escrow, error) {
	if beneficiary.IsZero() {
		return nil, ErrZeroBeneficiary
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if total == nil || total.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return &Escrow{
		beneficiary: beneficiary,
		schedule:    schedule,
		total:       common.CloneAmount(total),
		released:    new(big.Int),
	}, nil
}

func (e *Escrow) Beneficiary() common.Address {
	return e.beneficiary
}

func (e *Escrow) Schedule() Schedule {
	return e.schedule
}

func (e *Escrow) Total() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return common.CloneAmount(e.total)
}

func (e *Escrow) Released() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return common.CloneAmount(e.released)
}

// Releasable returns the vested-but-unreleased amount at time now
func (e *Escrow) Releasable(now int64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releasable(now)
}

func (e *Escrow) releasable(now int64) *big.Int {
	vested := e.schedule.VestedAt(e.total, now)
	return vested.Sub(vested, e.released)
}

// Release moves the releasable amount into the released total and
// returns it. A zero releasable amount is a no-op, not an error.
func (e *Escrow) Release(now int64) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	amount := e.releasable(now)
	if amount.Sign() <= 0 {
		return new(big.Int)
	}
	e.released.Add(e.released, amount)
	return amount
}

// Unrelease returns a previously released amount to the escrow. The
// engine uses this to compensate when the downstream token transfer
// for a release fails after the accounting was committed.
func (e *Escrow) Unrelease(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released.Sub(e.released, amount)
	if e.released.Sign() < 0 {
		e.released.SetInt64(0)
	}
}

// Factory creates escrows on demand. The sale engine consumes this as
// an external capability and never constructs escrows directly.
type Factory interface {
	Create(
		beneficiary common.Address,
		schedule Schedule,
		total *big.Int,
	) (*Escrow, error)
}

// MemoryFactory is the in-process Factory used by the engine and by
// tests. It refuses duplicate escrows per beneficiary so lazy creation
// stays idempotent at the engine layer.
type MemoryFactory struct {
	escrows map[common.Address]*Escrow
	mu      sync.Mutex
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		escrows: make(map[common.Address]*Escrow),
	}
}

func (f *MemoryFactory) Create(
	beneficiary common.Address,
	schedule Schedule,
	total *big.Int,
) (*Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.escrows[beneficiary]; ok {
		return nil, fmt.Errorf(
			"%w: %s",
			ErrEscrowExists,
			beneficiary.String(),
		)
	}
	escrow, err := NewEscrow(beneficiary, schedule, total)
	if err != nil {
		return nil, err
	}
	f.escrows[beneficiary] = escrow
	return escrow, nil
}

// Get returns the escrow for a beneficiary, if one exists
func (f *MemoryFactory) Get(beneficiary common.Address) (*Escrow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	escrow, ok := f.escrows[beneficiary]
	return escrow, ok
}
