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
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/merkle"
)

// Event types published by the lifecycle engine. The stream is the
// canonical audit trail; the operator's off-chain allocation jobs
// consume it to compute Merkle roots and totals.
const (
	CommitEventType              event.EventType = "sale.commit"
	RefundEventType              event.EventType = "sale.refund"
	CancelEventType              event.EventType = "sale.cancel"
	CancelWithdrawEventType      event.EventType = "sale.cancel_withdraw"
	ResultsPublishedEventType    event.EventType = "sale.results_published"
	CapitalRootEventType         event.EventType = "sale.capital_root_published"
	ApprovalRootEventType        event.EventType = "sale.approval_root_published"
	TokensSuppliedEventType      event.EventType = "sale.tokens_supplied"
	CapitalWithdrawnEventType    event.EventType = "sale.capital_withdrawn"
	AllocationClaimedEventType   event.EventType = "sale.allocation_claimed"
	ExcessWithdrawnEventType     event.EventType = "sale.excess_withdrawn"
	VestedReleasedEventType      event.EventType = "sale.vested_released"
	PausedEventType              event.EventType = "sale.paused"
	UnpausedEventType            event.EventType = "sale.unpaused"
	AddressesSyncedEventType     event.EventType = "sale.addresses_synced"
	RevealInitializedEventType   event.EventType = "sale.reveal_initialized"
	PrivateKeyPublishedEventType event.EventType = "sale.private_key_published"
)

// CancelReason distinguishes a voluntary project cancel from the
// permissionless expiry fallback
type CancelReason string

const (
	CancelVoluntary CancelReason = "voluntary"
	CancelExpired   CancelReason = "expired"
)

type CommitEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
	Total    *big.Int
	// SealedBid is set for auction commitments
	SealedBid bool
}

type RefundEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
}

type CancelEvent struct {
	SaleID string
	Caller common.Address
	Reason CancelReason
}

type CancelWithdrawEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
}

type ResultsPublishedEvent struct {
	SaleID          string
	AllocationRoot  merkle.Hash
	TokensAllocated *big.Int
	CapitalRaised   *big.Int
}

type CapitalRootEvent struct {
	SaleID string
	Root   merkle.Hash
}

type ApprovalRootEvent struct {
	SaleID string
	Root   merkle.Hash
}

type TokensSuppliedEvent struct {
	SaleID      string
	Amount      *big.Int
	OperatorFee *big.Int
	ReferrerFee *big.Int
}

type CapitalWithdrawnEvent struct {
	SaleID       string
	NetToProject *big.Int
	OperatorFee  *big.Int
	ReferrerFee  *big.Int
}

type AllocationClaimedEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
}

type ExcessWithdrawnEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
}

type VestedReleasedEvent struct {
	SaleID   string
	Investor common.Address
	Amount   *big.Int
}

type PauseEvent struct {
	SaleID string
	Caller common.Address
}

type AddressesSyncedEvent struct {
	SaleID    string
	Addresses TrustedAddresses
}

type RevealInitializedEvent struct {
	SaleID string
}

type PrivateKeyPublishedEvent struct {
	SaleID string
}

// publish emits an event when a bus is configured. Called with the
// sale mutex held, after the state mutation and any external transfer
// for the operation have completed.
func (s *Sale) publish(eventType event.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
