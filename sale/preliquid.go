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
	"github.com/Legion-Team/legion-protocol-contracts-sub000/merkle"
)

// PreLiquidApprovedSale is the pre-liquid variant restricted to an
// operator-approved investor cohort. Approval is an operator-published
// Merkle root over (investor, commitment cap) leaves; each commitment
// must carry a valid approval proof and stay within the cap. Because
// the project token may not exist yet, the ask asset may be zero, in
// which case the token supply and allocation claim paths are
// unavailable until a later sale.
type PreLiquidApprovedSale struct {
	*Sale
	approvalRoot    merkle.Hash
	approvalRootSet bool
}

// NewPreLiquidApprovedSale constructs an uninitialized approved
// pre-liquid sale
func NewPreLiquidApprovedSale(engine EngineConfig) *PreLiquidApprovedSale {
	s := NewSale(engine)
	// Bare commitments must go through the approval-gated path
	s.directCommitErr = ErrNotApproved
	return &PreLiquidApprovedSale{Sale: s}
}

// PublishApprovalRoot records the operator's approved-investor root.
// It may be rotated while the sale is open so late approvals can be
// added.
func (p *PreLiquidApprovedSale) PublishApprovalRoot(
	caller common.Address,
	root merkle.Hash,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if !p.authorize(caller).IsOperator() {
		return ErrNotOperator
	}
	if p.canceled {
		return ErrSaleCanceled
	}
	p.approvalRoot = root
	p.approvalRootSet = true
	p.publish(ApprovalRootEventType, ApprovalRootEvent{
		SaleID: p.config.SaleID,
		Root:   root,
	})
	return nil
}

// Commit pledges capital with an approval proof. The proof binds the
// investor to a commitment cap; the cumulative committed amount must
// stay within it.
func (p *PreLiquidApprovedSale) Commit(
	investor common.Address,
	amount *big.Int,
	cap *big.Int,
	proof []merkle.Hash,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.approvalRootSet {
		return ErrNotApproved
	}
	if err := merkle.Verify(p.approvalRoot, merkle.Leaf{
		Kind:     merkle.LeafInvestorApproval,
		Investor: investor,
		Amount:   cap,
	}, proof); err != nil {
		return ErrNotApproved
	}
	if amount != nil && cap != nil {
		total := new(big.Int).Set(amount)
		if pos, ok := p.positions[investor]; ok {
			total.Add(total, pos.committed)
		}
		if total.Cmp(cap) > 0 {
			return &CapExceededError{
				Cap: common.CloneAmount(cap),
				Got: total,
			}
		}
	}
	return p.commit(investor, amount, nil)
}

// PreLiquidOpenSale is the open-application pre-liquid variant: any
// investor may pledge, and the operator's accepted-capital root
// decides post hoc how much of each pledge the project keeps. The
// remainder comes back through excess-capital withdrawals.
type PreLiquidOpenSale struct {
	*Sale
}

// NewPreLiquidOpenSale constructs an uninitialized open-application
// pre-liquid sale
func NewPreLiquidOpenSale(engine EngineConfig) *PreLiquidOpenSale {
	return &PreLiquidOpenSale{Sale: NewSale(engine)}
}

// ClaimAcceptedCapital verifies how much of the investor's pledge was
// accepted against the published capital root and returns everything
// above it. The proof carries the accepted amount; the refundable
// excess is the committed remainder.
func (p *PreLiquidOpenSale) ClaimAcceptedCapital(
	investor common.Address,
	accepted *big.Int,
	proof []merkle.Hash,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if p.canceled {
		return ErrSaleCanceled
	}
	if !p.capitalRootPublished {
		return ErrCapitalRootNotPublished
	}
	pos, ok := p.positions[investor]
	if !ok {
		return ErrNoPosition
	}
	if pos.excessClaimed {
		return ErrExcessAlreadyClaimed
	}
	if err := merkle.Verify(p.capitalRoot, merkle.Leaf{
		Kind:     merkle.LeafAcceptedCapital,
		Investor: investor,
		Amount:   accepted,
	}, proof); err != nil {
		return err
	}
	accepted = common.CloneAmount(accepted)
	if accepted.Cmp(pos.committed) > 0 {
		return ErrNothingToWithdraw
	}
	excess := new(big.Int).Sub(pos.committed, accepted)
	pos.excessClaimed = true
	pos.committed.Set(accepted)
	p.capitalWithdrawn.Add(p.capitalWithdrawn, excess)
	if excess.Sign() > 0 {
		if err := p.bidToken.Transfer(
			p.config.SaleAddress, investor, excess,
		); err != nil {
			pos.excessClaimed = false
			pos.committed.Add(pos.committed, excess)
			p.capitalWithdrawn.Sub(p.capitalWithdrawn, excess)
			return &TransferError{
				Asset:  p.config.BidAsset,
				From:   p.config.SaleAddress,
				To:     investor,
				Amount: excess,
				Err:    err,
			}
		}
	}
	p.publish(ExcessWithdrawnEventType, ExcessWithdrawnEvent{
		SaleID:   p.config.SaleID,
		Investor: investor,
		Amount:   excess,
	})
	return nil
}
