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

// Package sale implements the multi-stage token-sale lifecycle engine
// shared by every sale variant: investors commit capital, the operator
// publishes allocation results as Merkle roots, the project supplies
// tokens sized by the fee calculator, and investors claim allocations
// into vesting escrows. Each public operation runs atomically against
// the sale instance, and internal state is committed before any
// external token movement.
package sale

import (
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/fees"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/merkle"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/registry"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sealedbid"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/vesting"
	"github.com/prometheus/client_golang/prometheus"
)

// TrustedAddresses is the sale's local cache of registry-resolved
// protocol addresses
type TrustedAddresses struct {
	Operator    common.Address
	FeeReceiver common.Address
}

// EngineConfig carries the collaborators shared by every sale variant
type EngineConfig struct {
	Logger         *slog.Logger
	EventBus       *event.EventBus
	PromRegistry   prometheus.Registerer
	Clock          func() time.Time
	Bounds         Bounds
	Registry       *registry.Registry
	BidToken       Token
	AskToken       Token
	VestingFactory vesting.Factory
}

// position tracks one investor's stake in the sale
type position struct {
	committed     *big.Int
	refunded      bool
	excessClaimed bool
	settled       bool
	escrow        *vesting.Escrow
	bid           *SealedBid
}

// Status is the externally visible snapshot of a sale's state
type Status struct {
	StartTime            int64
	EndTime              int64
	RefundEndTime        int64
	LockupEndTime        int64
	CapitalRaised        *big.Int
	CapitalWithdrawn     *big.Int
	TokensAllocated      *big.Int
	AskTotalSupply       *big.Int
	Canceled             bool
	Paused               bool
	ResultsPublished     bool
	TokensSupplied       bool
	ProjectWithdrew      bool
	RevealLockEngaged    bool
	PrivateKeyPublished  bool
	AllocationRoot       merkle.Hash
	CapitalRoot          merkle.Hash
	CapitalRootPublished bool
}

// Position is the externally visible snapshot of an investor position
type Position struct {
	Investor      common.Address
	Committed     *big.Int
	Refunded      bool
	ExcessClaimed bool
	Settled       bool
	Escrow        *vesting.Escrow
}

// Sale is the shared lifecycle engine. Variants embed it and layer
// their commitment gating on top.
type Sale struct {
	logger         *slog.Logger
	eventBus       *event.EventBus
	clock          func() time.Time
	bounds         Bounds
	registry       *registry.Registry
	bidToken       Token
	askToken       Token
	vestingFactory vesting.Factory
	metrics        *saleMetrics

	config    Config
	addresses TrustedAddresses

	initialized bool

	startTime     int64
	endTime       int64
	refundEndTime int64
	lockupEndTime int64

	capitalRaised    *big.Int
	capitalWithdrawn *big.Int
	tokensAllocated  *big.Int
	askTotalSupply   *big.Int

	canceled         bool
	paused           bool
	resultsPublished bool
	tokensSupplied   bool
	projectWithdrew  bool
	revealLock       bool

	// Per-leg progress for the multi-transfer payouts. A failed leg
	// aborts the operation; a retry resumes at the first leg that has
	// not yet executed instead of re-running completed transfers.
	supplyPulled         bool
	operatorTokenFeePaid bool
	referrerTokenFeePaid bool
	capitalLegsPaid      int

	allocationRoot       merkle.Hash
	capitalRoot          merkle.Hash
	capitalRootPublished bool

	privateKey          sealedbid.PrivateKey
	privateKeyPublished bool

	positions map[common.Address]*position

	// directCommitErr is set by variants whose commitments need extra
	// material (a sealed bid, an approval proof) so the shared path
	// rejects bare commitments with the variant's own error
	directCommitErr error

	mu sync.Mutex
}

// NewSale constructs an uninitialized sale handle. A single
// Initialize call performs the one-time setup.
func NewSale(engine EngineConfig) *Sale {
	s := &Sale{
		logger:           engine.Logger,
		eventBus:         engine.EventBus,
		clock:            engine.Clock,
		bounds:           engine.Bounds,
		registry:         engine.Registry,
		bidToken:         engine.BidToken,
		askToken:         engine.AskToken,
		vestingFactory:   engine.VestingFactory,
		capitalRaised:    new(big.Int),
		capitalWithdrawn: new(big.Int),
		tokensAllocated:  new(big.Int),
		askTotalSupply:   new(big.Int),
		positions:        make(map[common.Address]*position),
	}
	if s.logger == nil {
		// Throwaway logger so we don't guard every log call
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.bounds == (Bounds{}) {
		s.bounds = DefaultBounds()
	}
	if engine.PromRegistry != nil {
		s.metrics = newSaleMetrics(engine.PromRegistry)
	}
	return s
}

// Initialize performs the one-time setup: validates the configuration,
// resolves trusted addresses from the registry, snapshots the ask
// asset supply, and derives the absolute schedule from the current
// clock. A second call is rejected.
func (s *Sale) Initialize(config Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return ErrAlreadyInitialized
	}
	if err := config.Validate(s.bounds); err != nil {
		return err
	}
	if config.HasAskAsset() && s.askToken == nil {
		return ErrNoAskAsset
	}
	addresses, err := s.resolveAddresses()
	if err != nil {
		return err
	}
	s.config = config
	s.addresses = addresses
	now := s.clock().Unix()
	s.startTime = now
	s.endTime = now + config.SalePeriod
	s.refundEndTime = s.endTime + config.RefundPeriod
	s.lockupEndTime = s.endTime + config.LockupPeriod
	if config.HasAskAsset() {
		s.askTotalSupply = common.CloneAmount(s.askToken.TotalSupply())
	}
	s.initialized = true
	s.logger.Info(
		"sale initialized",
		"component", "sale",
		"sale_id", config.SaleID,
		"start", s.startTime,
		"end", s.endTime,
		"refund_end", s.refundEndTime,
		"lockup_end", s.lockupEndTime,
	)
	return nil
}

func (s *Sale) resolveAddresses() (TrustedAddresses, error) {
	var addresses TrustedAddresses
	if s.registry == nil {
		return addresses, ErrZeroAddress
	}
	operator, err := s.registry.Get(registry.KeyOperator)
	if err != nil {
		return addresses, err
	}
	feeReceiver, err := s.registry.Get(registry.KeyFeeReceiver)
	if err != nil {
		return addresses, err
	}
	if operator.IsZero() || feeReceiver.IsZero() {
		return addresses, ErrZeroAddress
	}
	addresses.Operator = operator
	addresses.FeeReceiver = feeReceiver
	return addresses, nil
}

func (s *Sale) now() int64 {
	return s.clock().Unix()
}

// Config returns the sale's write-once configuration
func (s *Sale) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Status returns a point-in-time snapshot of the sale state
func (s *Sale) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		StartTime:            s.startTime,
		EndTime:              s.endTime,
		RefundEndTime:        s.refundEndTime,
		LockupEndTime:        s.lockupEndTime,
		CapitalRaised:        common.CloneAmount(s.capitalRaised),
		CapitalWithdrawn:     common.CloneAmount(s.capitalWithdrawn),
		TokensAllocated:      common.CloneAmount(s.tokensAllocated),
		AskTotalSupply:       common.CloneAmount(s.askTotalSupply),
		Canceled:             s.canceled,
		Paused:               s.paused,
		ResultsPublished:     s.resultsPublished,
		TokensSupplied:       s.tokensSupplied,
		ProjectWithdrew:      s.projectWithdrew,
		RevealLockEngaged:    s.revealLock,
		PrivateKeyPublished:  s.privateKeyPublished,
		AllocationRoot:       s.allocationRoot,
		CapitalRoot:          s.capitalRoot,
		CapitalRootPublished: s.capitalRootPublished,
	}
}

// Position returns a snapshot of an investor's stake
func (s *Sale) Position(investor common.Address) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[investor]
	if !ok {
		return Position{}, ErrNoPosition
	}
	return Position{
		Investor:      investor,
		Committed:     common.CloneAmount(pos.committed),
		Refunded:      pos.refunded,
		ExcessClaimed: pos.excessClaimed,
		Settled:       pos.settled,
		Escrow:        pos.escrow,
	}, nil
}

// Commit pledges bid-asset capital to the sale. Valid while the sale
// is open, not paused, and not canceled. The auction variant rejects
// this path in favor of CommitWithBid.
func (s *Sale) Commit(investor common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.directCommitErr != nil {
		return s.directCommitErr
	}
	return s.commit(investor, amount, nil)
}

// commit is the shared commitment path. Callers hold the mutex.
func (s *Sale) commit(
	investor common.Address,
	amount *big.Int,
	bid *SealedBid,
) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if s.paused {
		return ErrSalePaused
	}
	if s.now() >= s.endTime {
		return ErrSaleEnded
	}
	if investor.IsZero() {
		return ErrZeroAddress
	}
	if amount == nil || amount.Cmp(s.config.MinimumCommit) < 0 {
		return &BelowMinimumError{
			Minimum: common.CloneAmount(s.config.MinimumCommit),
			Got:     common.CloneAmount(amount),
		}
	}
	amount = common.CloneAmount(amount)
	pos, ok := s.positions[investor]
	if !ok {
		pos = &position{committed: new(big.Int)}
		s.positions[investor] = pos
	}
	pos.committed.Add(pos.committed, amount)
	s.capitalRaised.Add(s.capitalRaised, amount)
	if err := s.bidToken.TransferFrom(
		s.config.SaleAddress, investor, s.config.SaleAddress, amount,
	); err != nil {
		pos.committed.Sub(pos.committed, amount)
		s.capitalRaised.Sub(s.capitalRaised, amount)
		if !ok {
			delete(s.positions, investor)
		}
		return &TransferError{
			Asset:  s.config.BidAsset,
			From:   investor,
			To:     s.config.SaleAddress,
			Amount: amount,
			Err:    err,
		}
	}
	// The bid attaches only once the capital actually moved
	if bid != nil {
		pos.bid = bid
	}
	if s.metrics != nil {
		s.metrics.commitments.WithLabelValues(s.config.SaleID).Inc()
		s.metrics.setCapitalRaised(s.config.SaleID, s.capitalRaised)
		s.metrics.investors.WithLabelValues(s.config.SaleID).
			Set(float64(len(s.positions)))
	}
	s.logger.Info(
		"capital committed",
		"component", "sale",
		"sale_id", s.config.SaleID,
		"investor", investor.String(),
		"amount", amount.String(),
	)
	s.publish(CommitEventType, CommitEvent{
		SaleID:    s.config.SaleID,
		Investor:  investor,
		Amount:    amount,
		Total:     common.CloneAmount(pos.committed),
		SealedBid: bid != nil,
	})
	return nil
}

// Refund returns an investor's full committed amount during the refund
// window, exactly once. The capital leaves the raised total and any
// sealed bid is discarded from the auction accounting.
func (s *Sale) Refund(investor common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	now := s.now()
	if now < s.endTime {
		return ErrSaleNotEnded
	}
	if now >= s.refundEndTime {
		return ErrRefundPeriodOver
	}
	pos, ok := s.positions[investor]
	if !ok {
		return ErrNoPosition
	}
	if pos.refunded {
		return ErrAlreadyRefunded
	}
	amount := common.CloneAmount(pos.committed)
	if amount.Sign() == 0 {
		return ErrNothingToWithdraw
	}
	pos.refunded = true
	pos.committed.SetInt64(0)
	pos.bid = nil
	s.capitalRaised.Sub(s.capitalRaised, amount)
	s.capitalWithdrawn.Add(s.capitalWithdrawn, amount)
	if err := s.bidToken.Transfer(
		s.config.SaleAddress, investor, amount,
	); err != nil {
		pos.refunded = false
		pos.committed.Set(amount)
		s.capitalRaised.Add(s.capitalRaised, amount)
		s.capitalWithdrawn.Sub(s.capitalWithdrawn, amount)
		return &TransferError{
			Asset:  s.config.BidAsset,
			From:   s.config.SaleAddress,
			To:     investor,
			Amount: amount,
			Err:    err,
		}
	}
	if s.metrics != nil {
		s.metrics.refunds.WithLabelValues(s.config.SaleID).Inc()
		s.metrics.setCapitalRaised(s.config.SaleID, s.capitalRaised)
	}
	s.publish(RefundEventType, RefundEvent{
		SaleID:   s.config.SaleID,
		Investor: investor,
		Amount:   amount,
	})
	return nil
}

// Cancel is the project's voluntary cancellation, allowed only before
// results are published and before tokens are supplied. The auction
// variant also refuses it while a reveal is in progress.
func (s *Sale) Cancel(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.authorize(caller).IsProjectAdmin() {
		return ErrNotProjectAdmin
	}
	if s.revealLock {
		return ErrRevealLockEngaged
	}
	if err := s.cancel(); err != nil {
		return err
	}
	s.publish(CancelEventType, CancelEvent{
		SaleID: s.config.SaleID,
		Caller: caller,
		Reason: CancelVoluntary,
	})
	return nil
}

// CancelExpired is the permissionless fallback: once the lockup window
// has elapsed with no results published and no tokens supplied, anyone
// may cancel the sale so investors can recover their capital. A
// stalled auction reveal does not block it; the reveal lock only stops
// the project's voluntary Cancel.
func (s *Sale) CancelExpired(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.now() < s.lockupEndTime {
		return ErrLockupNotOver
	}
	if err := s.cancel(); err != nil {
		return err
	}
	s.publish(CancelEventType, CancelEvent{
		SaleID: s.config.SaleID,
		Caller: caller,
		Reason: CancelExpired,
	})
	return nil
}

func (s *Sale) cancel() error {
	if s.canceled {
		return ErrSaleCanceled
	}
	if s.resultsPublished {
		return ErrResultsAlreadyPublished
	}
	if s.tokensSupplied {
		return ErrTokensAlreadySupplied
	}
	s.canceled = true
	s.revealLock = false
	s.logger.Info(
		"sale canceled",
		"component", "sale",
		"sale_id", s.config.SaleID,
	)
	return nil
}

// WithdrawAfterCancel returns an investor's full committed capital
// once the sale is canceled, regardless of the normal refund window
func (s *Sale) WithdrawAfterCancel(investor common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.canceled {
		return ErrSaleNotCanceled
	}
	pos, ok := s.positions[investor]
	if !ok {
		return ErrNoPosition
	}
	amount := common.CloneAmount(pos.committed)
	if amount.Sign() == 0 {
		return ErrNothingToWithdraw
	}
	pos.committed.SetInt64(0)
	s.capitalRaised.Sub(s.capitalRaised, amount)
	s.capitalWithdrawn.Add(s.capitalWithdrawn, amount)
	if err := s.bidToken.Transfer(
		s.config.SaleAddress, investor, amount,
	); err != nil {
		pos.committed.Set(amount)
		s.capitalRaised.Add(s.capitalRaised, amount)
		s.capitalWithdrawn.Sub(s.capitalWithdrawn, amount)
		return &TransferError{
			Asset:  s.config.BidAsset,
			From:   s.config.SaleAddress,
			To:     investor,
			Amount: amount,
			Err:    err,
		}
	}
	s.publish(CancelWithdrawEventType, CancelWithdrawEvent{
		SaleID:   s.config.SaleID,
		Investor: investor,
		Amount:   amount,
	})
	return nil
}

// PublishResults records the operator's allocation root and totals.
// Allowed only once, only after the refund window closes, and never on
// a canceled sale. The published totals are immutable afterwards.
func (s *Sale) PublishResults(
	caller common.Address,
	allocationRoot merkle.Hash,
	tokensAllocated *big.Int,
	capitalRaised *big.Int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishResults(
		caller, allocationRoot, tokensAllocated, capitalRaised,
	)
}

func (s *Sale) publishResults(
	caller common.Address,
	allocationRoot merkle.Hash,
	tokensAllocated *big.Int,
	capitalRaised *big.Int,
) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.authorize(caller).IsOperator() {
		return ErrNotOperator
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if s.resultsPublished {
		return ErrResultsAlreadyPublished
	}
	if s.now() < s.refundEndTime {
		return ErrRefundPeriodNotOver
	}
	if tokensAllocated == nil || capitalRaised == nil {
		return ErrZeroValue
	}
	s.resultsPublished = true
	s.allocationRoot = allocationRoot
	s.tokensAllocated = common.CloneAmount(tokensAllocated)
	s.capitalRaised = common.CloneAmount(capitalRaised)
	s.publish(ResultsPublishedEventType, ResultsPublishedEvent{
		SaleID:          s.config.SaleID,
		AllocationRoot:  allocationRoot,
		TokensAllocated: common.CloneAmount(tokensAllocated),
		CapitalRaised:   common.CloneAmount(capitalRaised),
	})
	return nil
}

// PublishCapitalRoot records the operator's accepted/excess-capital
// root governing per-investor excess withdrawals
func (s *Sale) PublishCapitalRoot(
	caller common.Address,
	root merkle.Hash,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.authorize(caller).IsOperator() {
		return ErrNotOperator
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if s.now() < s.refundEndTime {
		return ErrRefundPeriodNotOver
	}
	if s.capitalRootPublished {
		return ErrCapitalRootPublished
	}
	s.capitalRoot = root
	s.capitalRootPublished = true
	s.publish(CapitalRootEventType, CapitalRootEvent{
		SaleID: s.config.SaleID,
		Root:   root,
	})
	return nil
}

// SupplyTokens is the project delivering the ask asset in the exact
// amount implied by the published allocation plus token fees. Declared
// fee components must match the recomputed values exactly.
func (s *Sale) SupplyTokens(
	caller common.Address,
	amount *big.Int,
	operatorFee *big.Int,
	referrerFee *big.Int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.authorize(caller).IsProjectAdmin() {
		return ErrNotProjectAdmin
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if !s.config.HasAskAsset() {
		return ErrNoAskAsset
	}
	if !s.resultsPublished {
		return ErrResultsNotPublished
	}
	if s.tokensSupplied {
		return ErrTokensAlreadySupplied
	}
	if err := fees.CheckDeclaredSupply(
		s.tokensAllocated, s.config.Fees, amount, operatorFee, referrerFee,
	); err != nil {
		return err
	}
	required := fees.RequiredSupply(s.tokensAllocated, s.config.Fees)
	if !s.supplyPulled {
		if err := s.askToken.TransferFrom(
			s.config.SaleAddress, caller, s.config.SaleAddress,
			required.Required,
		); err != nil {
			return &TransferError{
				Asset:  s.config.AskAsset,
				From:   caller,
				To:     s.config.SaleAddress,
				Amount: required.Required,
				Err:    err,
			}
		}
		s.supplyPulled = true
	}
	// Fee legs run after the main supply; a zero rate skips the leg
	if err := s.payTokenFees(required); err != nil {
		return err
	}
	s.tokensSupplied = true
	s.publish(TokensSuppliedEventType, TokensSuppliedEvent{
		SaleID:      s.config.SaleID,
		Amount:      common.CloneAmount(s.tokensAllocated),
		OperatorFee: required.OperatorFee,
		ReferrerFee: required.ReferrerFee,
	})
	return nil
}

func (s *Sale) payTokenFees(supply fees.TokenSupply) error {
	if !s.operatorTokenFeePaid && supply.OperatorFee.Sign() > 0 {
		if err := s.askToken.Transfer(
			s.config.SaleAddress,
			s.addresses.FeeReceiver,
			supply.OperatorFee,
		); err != nil {
			return &TransferError{
				Asset:  s.config.AskAsset,
				From:   s.config.SaleAddress,
				To:     s.addresses.FeeReceiver,
				Amount: supply.OperatorFee,
				Err:    err,
			}
		}
		s.operatorTokenFeePaid = true
	}
	if !s.referrerTokenFeePaid && supply.ReferrerFee.Sign() > 0 {
		if err := s.askToken.Transfer(
			s.config.SaleAddress,
			s.config.ReferrerFeeReceiver,
			supply.ReferrerFee,
		); err != nil {
			return &TransferError{
				Asset:  s.config.AskAsset,
				From:   s.config.SaleAddress,
				To:     s.config.ReferrerFeeReceiver,
				Amount: supply.ReferrerFee,
				Err:    err,
			}
		}
		s.referrerTokenFeePaid = true
	}
	return nil
}

// WithdrawRaisedCapital sends the project its net raised capital,
// once, after results are published and, for sales with an ask asset,
// after tokens are supplied. Operator and referrer capital fees pay
// out in the same call.
func (s *Sale) WithdrawRaisedCapital(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.authorize(caller).IsProjectAdmin() {
		return ErrNotProjectAdmin
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if !s.resultsPublished {
		return ErrResultsNotPublished
	}
	if s.config.HasAskAsset() && !s.tokensSupplied {
		return ErrTokensNotSupplied
	}
	if s.projectWithdrew {
		return ErrCapitalAlreadyWithdrawn
	}
	split := fees.SplitCapital(s.capitalRaised, s.config.Fees)
	if err := s.payCapital(split); err != nil {
		return err
	}
	s.projectWithdrew = true
	s.publish(CapitalWithdrawnEventType, CapitalWithdrawnEvent{
		SaleID:       s.config.SaleID,
		NetToProject: split.NetToProject,
		OperatorFee:  split.OperatorFee,
		ReferrerFee:  split.ReferrerFee,
	})
	return nil
}

func (s *Sale) payCapital(split fees.CapitalSplit) error {
	legs := []struct {
		to     common.Address
		amount *big.Int
	}{
		{s.config.ProjectAdmin, split.NetToProject},
		{s.addresses.FeeReceiver, split.OperatorFee},
		{s.config.ReferrerFeeReceiver, split.ReferrerFee},
	}
	for i, leg := range legs {
		if i < s.capitalLegsPaid {
			continue
		}
		if leg.amount.Sign() <= 0 {
			s.capitalLegsPaid = i + 1
			continue
		}
		if err := s.bidToken.Transfer(
			s.config.SaleAddress, leg.to, leg.amount,
		); err != nil {
			return &TransferError{
				Asset:  s.config.BidAsset,
				From:   s.config.SaleAddress,
				To:     leg.to,
				Amount: leg.amount,
				Err:    err,
			}
		}
		s.capitalLegsPaid = i + 1
	}
	return nil
}

// ClaimAllocation settles an investor's token allocation into a
// vesting escrow, exactly once, gated on the published allocation
// root. The vesting schedule starts at the lockup end.
func (s *Sale) ClaimAllocation(
	investor common.Address,
	amount *big.Int,
	proof []merkle.Hash,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if !s.config.HasAskAsset() {
		return ErrNoAskAsset
	}
	if !s.resultsPublished {
		return ErrResultsNotPublished
	}
	if !s.tokensSupplied {
		return ErrTokensNotSupplied
	}
	if s.now() < s.lockupEndTime {
		return ErrLockupNotOver
	}
	pos, ok := s.positions[investor]
	if !ok {
		return ErrNoPosition
	}
	if pos.settled {
		return ErrAlreadySettled
	}
	if err := merkle.Verify(s.allocationRoot, merkle.Leaf{
		Kind:     merkle.LeafTokenAllocation,
		Investor: investor,
		Amount:   amount,
	}, proof); err != nil {
		return err
	}
	escrow, err := s.vestingFactory.Create(
		investor,
		vesting.Schedule{
			Start:         s.lockupEndTime,
			Duration:      s.config.VestingDuration,
			CliffDuration: s.config.VestingCliff,
			EpochDuration: s.config.VestingEpoch,
		},
		amount,
	)
	if err != nil {
		return err
	}
	pos.settled = true
	pos.escrow = escrow
	if s.metrics != nil {
		s.metrics.claims.WithLabelValues(s.config.SaleID).Inc()
	}
	s.publish(AllocationClaimedEventType, AllocationClaimedEvent{
		SaleID:   s.config.SaleID,
		Investor: investor,
		Amount:   common.CloneAmount(amount),
	})
	return nil
}

// WithdrawExcessCapital returns the portion of an investor's pledge
// the project did not keep, gated on the published capital root,
// exactly once per investor
func (s *Sale) WithdrawExcessCapital(
	investor common.Address,
	amount *big.Int,
	proof []merkle.Hash,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.canceled {
		return ErrSaleCanceled
	}
	if !s.capitalRootPublished {
		return ErrCapitalRootNotPublished
	}
	pos, ok := s.positions[investor]
	if !ok {
		return ErrNoPosition
	}
	if pos.excessClaimed {
		return ErrExcessAlreadyClaimed
	}
	if err := merkle.Verify(s.capitalRoot, merkle.Leaf{
		Kind:     merkle.LeafExcessCapital,
		Investor: investor,
		Amount:   amount,
	}, proof); err != nil {
		return err
	}
	amount = common.CloneAmount(amount)
	if amount.Sign() == 0 || amount.Cmp(pos.committed) > 0 {
		return ErrNothingToWithdraw
	}
	pos.excessClaimed = true
	pos.committed.Sub(pos.committed, amount)
	s.capitalWithdrawn.Add(s.capitalWithdrawn, amount)
	if err := s.bidToken.Transfer(
		s.config.SaleAddress, investor, amount,
	); err != nil {
		pos.excessClaimed = false
		pos.committed.Add(pos.committed, amount)
		s.capitalWithdrawn.Sub(s.capitalWithdrawn, amount)
		return &TransferError{
			Asset:  s.config.BidAsset,
			From:   s.config.SaleAddress,
			To:     investor,
			Amount: amount,
			Err:    err,
		}
	}
	s.publish(ExcessWithdrawnEventType, ExcessWithdrawnEvent{
		SaleID:   s.config.SaleID,
		Investor: investor,
		Amount:   amount,
	})
	return nil
}

// ReleaseVested moves an investor's vested-but-unreleased tokens out
// of escrow. A zero releasable amount is a no-op; having no escrow at
// all is a distinct error.
func (s *Sale) ReleaseVested(investor common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	pos, ok := s.positions[investor]
	if !ok || pos.escrow == nil {
		return nil, ErrNothingToRelease
	}
	amount := pos.escrow.Release(s.now())
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := s.askToken.Transfer(
		s.config.SaleAddress, investor, amount,
	); err != nil {
		pos.escrow.Unrelease(amount)
		return nil, &TransferError{
			Asset:  s.config.AskAsset,
			From:   s.config.SaleAddress,
			To:     investor,
			Amount: amount,
			Err:    err,
		}
	}
	s.publish(VestedReleasedEventType, VestedReleasedEvent{
		SaleID:   s.config.SaleID,
		Investor: investor,
		Amount:   common.CloneAmount(amount),
	})
	return amount, nil
}

// Pause suspends new commitments. Refunds, claims, and withdrawals
// are unaffected.
func (s *Sale) Pause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	auth := s.authorize(caller)
	if !auth.IsOperator() && !auth.IsProjectAdmin() {
		return ErrNotOperator
	}
	if s.paused {
		return ErrSalePaused
	}
	s.paused = true
	s.publish(PausedEventType, PauseEvent{
		SaleID: s.config.SaleID,
		Caller: caller,
	})
	return nil
}

// Unpause resumes commitments
func (s *Sale) Unpause(caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	auth := s.authorize(caller)
	if !auth.IsOperator() && !auth.IsProjectAdmin() {
		return ErrNotOperator
	}
	if !s.paused {
		return ErrSaleNotPaused
	}
	s.paused = false
	s.publish(UnpausedEventType, PauseEvent{
		SaleID: s.config.SaleID,
		Caller: caller,
	})
	return nil
}

// SyncAddresses refreshes the sale's cached trusted addresses from
// the registry. Anyone may call it.
func (s *Sale) SyncAddresses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	addresses, err := s.resolveAddresses()
	if err != nil {
		return err
	}
	s.addresses = addresses
	s.publish(AddressesSyncedEventType, AddressesSyncedEvent{
		SaleID:    s.config.SaleID,
		Addresses: addresses,
	})
	return nil
}

// TrustedAddresses returns the sale's current trusted-address cache
func (s *Sale) TrustedAddresses() TrustedAddresses {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addresses
}
