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

package sale

import (
	"fmt"
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/fees"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sealedbid"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/vesting"
)

// Protocol-wide period bounds (seconds)
const (
	MinSalePeriod   = int64(3600)            // 1 hour
	MaxSalePeriod   = int64(90 * 24 * 3600)  // 12 weeks and change
	MinRefundPeriod = int64(3600)            // 1 hour
	MaxRefundPeriod = int64(14 * 24 * 3600)  // 2 weeks
	MaxLockupPeriod = int64(180 * 24 * 3600) // 6 months
)

// Bounds holds the protocol limits sale periods are validated against
type Bounds struct {
	SaleMin   int64
	SaleMax   int64
	RefundMin int64
	RefundMax int64
	LockupMax int64
}

func DefaultBounds() Bounds {
	return Bounds{
		SaleMin:   MinSalePeriod,
		SaleMax:   MaxSalePeriod,
		RefundMin: MinRefundPeriod,
		RefundMax: MaxRefundPeriod,
		LockupMax: MaxLockupPeriod,
	}
}

// Config is a sale's write-once configuration, fixed at
// initialization
type Config struct {
	// SaleID identifies the sale instance in events and storage
	SaleID string
	// Periods are durations in seconds; absolute timestamps derive
	// from the initialization time
	SalePeriod   int64
	RefundPeriod int64
	// LockupPeriod runs from the sale end, so lockup end is always at
	// or after refund end
	LockupPeriod int64
	Fees         fees.Rates
	// MinimumCommit is the smallest accepted commitment
	MinimumCommit *big.Int
	// SaleAddress is the account the sale instance holds assets under
	SaleAddress common.Address
	BidAsset    common.Address
	// AskAsset may be zero for capital-only sales, in which case the
	// token supply and allocation claim paths are unavailable
	AskAsset            common.Address
	ProjectAdmin        common.Address
	ReferrerFeeReceiver common.Address
	// Vesting parameters applied to every claimed allocation
	VestingDuration int64
	VestingCliff    int64
	VestingEpoch    int64
	// AuctionPublicKey is set only for the sealed-bid auction variant
	AuctionPublicKey sealedbid.PublicKey
}

// HasAskAsset reports whether allocation claims and token supply are
// defined for this sale
func (c Config) HasAskAsset() bool {
	return !c.AskAsset.IsZero()
}

func checkPeriod(field string, got, minimum, maximum int64) error {
	if got < minimum || got > maximum {
		return &PeriodBoundsError{
			Field: field,
			Min:   minimum,
			Max:   maximum,
			Got:   got,
		}
	}
	return nil
}

// Validate checks the write-once invariants from the protocol rules:
// required addresses non-zero, periods within bounds, fee rates within
// 10000 bps, vesting parameters well-formed.
func (c Config) Validate(bounds Bounds) error {
	if c.SaleID == "" {
		return fmt.Errorf("%w: sale ID", ErrZeroValue)
	}
	if err := checkPeriod(
		"sale", c.SalePeriod, bounds.SaleMin, bounds.SaleMax,
	); err != nil {
		return err
	}
	if err := checkPeriod(
		"refund", c.RefundPeriod, bounds.RefundMin, bounds.RefundMax,
	); err != nil {
		return err
	}
	// Lockup runs from sale end and must cover the refund window
	if err := checkPeriod(
		"lockup", c.LockupPeriod, c.RefundPeriod, bounds.LockupMax,
	); err != nil {
		return err
	}
	if err := c.Fees.Validate(); err != nil {
		return err
	}
	if c.MinimumCommit == nil || c.MinimumCommit.Sign() <= 0 {
		return fmt.Errorf("%w: minimum commitment", ErrZeroValue)
	}
	if c.SaleAddress.IsZero() {
		return fmt.Errorf("%w: sale address", ErrZeroAddress)
	}
	if c.BidAsset.IsZero() {
		return fmt.Errorf("%w: bid asset", ErrZeroAddress)
	}
	if c.ProjectAdmin.IsZero() {
		return fmt.Errorf("%w: project admin", ErrZeroAddress)
	}
	if c.Fees.ReferrerOnCapital > 0 || c.Fees.ReferrerOnTokens > 0 {
		if c.ReferrerFeeReceiver.IsZero() {
			return fmt.Errorf("%w: referrer fee receiver", ErrZeroAddress)
		}
	}
	if c.HasAskAsset() {
		schedule := vesting.Schedule{
			Duration:      c.VestingDuration,
			CliffDuration: c.VestingCliff,
			EpochDuration: c.VestingEpoch,
		}
		if err := schedule.Validate(); err != nil {
			return fmt.Errorf("vesting config: %w", err)
		}
	}
	return nil
}
