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
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sealedbid"
)

// SealedBid is an auction commitment: the masked desired ask amount,
// the investor-identity salt it is bound to, and a snapshot of the
// public key it was encrypted under. Only structural correctness is
// checked at commit time; plaintext validity is unknowable until the
// operator reveals the private key.
type SealedBid struct {
	Ciphertext sealedbid.Ciphertext
	Salt       common.Address
	PublicKey  sealedbid.PublicKey
}

// AuctionSale is the sealed-bid auction variant. Commitments carry an
// encrypted desired amount, and results publication is two-phase: an
// initialize step engages a cancel lock, then the actual publication
// reveals the discrete-log private key.
type AuctionSale struct {
	*Sale
}

// NewAuctionSale constructs an uninitialized auction sale
func NewAuctionSale(engine EngineConfig) *AuctionSale {
	s := NewSale(engine)
	s.directCommitErr = ErrMissingSealedBid
	return &AuctionSale{Sale: s}
}

// Initialize validates the auction public key on top of the shared
// configuration checks
func (a *AuctionSale) Initialize(config Config) error {
	if err := config.AuctionPublicKey.Validate(); err != nil {
		return err
	}
	return a.Sale.Initialize(config)
}

// Commit pledges capital alongside a sealed bid. The bid's public key
// snapshot must match the sale's configured key and its salt must be
// the committing investor's own identity; both are rejected before
// any capital moves.
func (a *AuctionSale) Commit(
	investor common.Address,
	amount *big.Int,
	bid SealedBid,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if bid.PublicKey != a.config.AuctionPublicKey {
		return ErrBidPublicKeyMismatch
	}
	if bid.Salt != investor {
		return ErrBidSaltMismatch
	}
	return a.commit(investor, amount, &bid)
}

// InitializeResultsPublication is the first phase of the reveal: it
// engages a lock that stops the project from canceling mid-reveal.
// Only the operator may call it, only after the refund window closes.
func (a *AuctionSale) InitializeResultsPublication(
	caller common.Address,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return ErrNotInitialized
	}
	if !a.authorize(caller).IsOperator() {
		return ErrNotOperator
	}
	if a.canceled {
		return ErrSaleCanceled
	}
	if a.resultsPublished {
		return ErrResultsAlreadyPublished
	}
	if a.now() < a.refundEndTime {
		return ErrRefundPeriodNotOver
	}
	if a.revealLock {
		return ErrRevealLockEngaged
	}
	a.revealLock = true
	a.publish(RevealInitializedEventType, RevealInitializedEvent{
		SaleID: a.config.SaleID,
	})
	return nil
}

// PublishResults is the second phase of the reveal: the allocation
// root and totals publish together with the private key matching the
// configured public key. A mismatched key is rejected and the reveal
// can be retried; a second successful publication is rejected.
func (a *AuctionSale) PublishResults(
	caller common.Address,
	allocationRoot merkle.Hash,
	tokensAllocated *big.Int,
	capitalRaised *big.Int,
	privateKey sealedbid.PrivateKey,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.revealLock {
		return ErrRevealLockNotEngaged
	}
	if a.privateKeyPublished {
		return ErrPrivateKeyAlreadyPublished
	}
	if err := sealedbid.VerifyKeypair(
		privateKey, a.config.AuctionPublicKey,
	); err != nil {
		return err
	}
	if err := a.publishResults(
		caller, allocationRoot, tokensAllocated, capitalRaised,
	); err != nil {
		return err
	}
	a.privateKey = privateKey
	a.privateKeyPublished = true
	a.revealLock = false
	a.publish(PrivateKeyPublishedEventType, PrivateKeyPublishedEvent{
		SaleID: a.config.SaleID,
	})
	return nil
}

// PrivateKey returns the revealed private key once published
func (a *AuctionSale) PrivateKey() (sealedbid.PrivateKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.privateKeyPublished {
		return sealedbid.PrivateKey{}, sealedbid.ErrPrivateKeyNotRevealed
	}
	return a.privateKey, nil
}

// SealedBidFor returns an investor's sealed bid as committed
func (a *AuctionSale) SealedBidFor(
	investor common.Address,
) (SealedBid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos, ok := a.positions[investor]
	if !ok {
		return SealedBid{}, ErrNoPosition
	}
	if pos.bid == nil {
		return SealedBid{}, ErrNoSealedBid
	}
	return *pos.bid, nil
}

// DecryptBid opens an investor's sealed bid. It is a read-only
// operation available to anyone, but only after the private key is
// revealed; attempting it earlier fails distinctly from a
// mismatched-salt attempt.
func (a *AuctionSale) DecryptBid(
	investor common.Address,
	salt common.Address,
) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.privateKeyPublished {
		return nil, sealedbid.ErrPrivateKeyNotRevealed
	}
	pos, ok := a.positions[investor]
	if !ok {
		return nil, ErrNoPosition
	}
	if pos.bid == nil {
		return nil, ErrNoSealedBid
	}
	if salt != pos.bid.Salt {
		return nil, sealedbid.ErrSaltMismatch
	}
	return sealedbid.Decrypt(pos.bid.Ciphertext, salt, a.privateKey)
}
