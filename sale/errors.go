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
	"errors"
	"fmt"
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

// Configuration errors
var (
	ErrNotInitialized     = errors.New("sale not initialized")
	ErrAlreadyInitialized = errors.New("sale already initialized")
	ErrZeroAddress        = errors.New("required address is zero")
	ErrZeroValue          = errors.New("required value is zero")
)

// State and timing errors
var (
	ErrSaleEnded               = errors.New("sale commitment window has ended")
	ErrSaleNotEnded            = errors.New("sale commitment window still open")
	ErrRefundPeriodOver        = errors.New("refund window has closed")
	ErrRefundPeriodNotOver     = errors.New("refund window still open")
	ErrLockupNotOver           = errors.New("lockup window not elapsed")
	ErrSaleCanceled            = errors.New("sale is canceled")
	ErrSaleNotCanceled         = errors.New("sale is not canceled")
	ErrSalePaused              = errors.New("sale is paused")
	ErrSaleNotPaused           = errors.New("sale is not paused")
	ErrResultsAlreadyPublished = errors.New("sale results already published")
	ErrResultsNotPublished     = errors.New("sale results not published")
	ErrCapitalRootPublished    = errors.New("capital root already published")
	ErrCapitalRootNotPublished = errors.New("capital root not published")
	ErrTokensAlreadySupplied   = errors.New("ask tokens already supplied")
	ErrTokensNotSupplied       = errors.New("ask tokens not supplied")
	ErrNoAskAsset              = errors.New("sale has no ask asset")
	ErrRevealLockEngaged       = errors.New("results publication in progress")
	ErrRevealLockNotEngaged    = errors.New("results publication not initialized")
)

// Authorization errors
var (
	ErrNotOperator     = errors.New("caller is not the operator")
	ErrNotProjectAdmin = errors.New("caller is not the project admin")
)

// Integrity errors
var (
	ErrBidPublicKeyMismatch = errors.New(
		"sealed bid public key does not match sale key",
	)
	ErrBidSaltMismatch = errors.New(
		"sealed bid salt is not the committing investor",
	)
	ErrMissingSealedBid           = errors.New("commitment requires a sealed bid")
	ErrPrivateKeyAlreadyPublished = errors.New("private key already published")
	ErrNoSealedBid                = errors.New("no sealed bid for investor")
	ErrNotApproved                = errors.New("investor not on the approval list")
)

// Accounting errors
var (
	ErrNoPosition              = errors.New("no position for investor")
	ErrAlreadyRefunded         = errors.New("position already refunded")
	ErrAlreadySettled          = errors.New("allocation already settled")
	ErrExcessAlreadyClaimed    = errors.New("excess capital already claimed")
	ErrCapitalAlreadyWithdrawn = errors.New("raised capital already withdrawn")
	ErrNothingToWithdraw       = errors.New("nothing to withdraw")
	ErrNothingToRelease        = errors.New("no vesting escrow to release from")
)

// PeriodBoundsError reports a configured period outside the protocol
// bounds
type PeriodBoundsError struct {
	Field string
	Min   int64
	Max   int64
	Got   int64
}

func (e *PeriodBoundsError) Error() string {
	return fmt.Sprintf(
		"%s period out of bounds: got %ds, allowed [%ds, %ds]",
		e.Field,
		e.Got,
		e.Min,
		e.Max,
	)
}

// BelowMinimumError reports a commitment under the configured floor
type BelowMinimumError struct {
	Minimum *big.Int
	Got     *big.Int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf(
		"commitment below minimum: got %s, minimum %s",
		e.Got.String(),
		e.Minimum.String(),
	)
}

// CapExceededError reports a cumulative commitment above the approved
// cap for a pre-liquid investor
type CapExceededError struct {
	Cap *big.Int
	Got *big.Int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf(
		"commitment exceeds approved cap: total %s, cap %s",
		e.Got.String(),
		e.Cap.String(),
	)
}

// TransferError wraps a failed token movement. Transfers run after all
// internal state is committed, and any failure aborts the whole call.
type TransferError struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf(
		"token transfer failed: asset %s, %s -> %s, amount %s: %v",
		e.Asset.String(),
		e.From.String(),
		e.To.String(),
		e.Amount.String(),
		e.Err,
	)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
