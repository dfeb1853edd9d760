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

package sale_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/merkle"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sealedbid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auctionFixture struct {
	*saleFixture
	sale    *sale.AuctionSale
	privKey sealedbid.PrivateKey
	pubKey  sealedbid.PublicKey
}

func newAuctionFixture(t *testing.T) *auctionFixture {
	t.Helper()
	f := newSaleFixture(t)
	priv, pub, err := sealedbid.GenerateKeypair()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.AuctionPublicKey = pub
	a := sale.NewAuctionSale(f.engine())
	require.NoError(t, a.Initialize(cfg))
	return &auctionFixture{
		saleFixture: f,
		sale:        a,
		privKey:     priv,
		pubKey:      pub,
	}
}

// sealBid encrypts a desired ask amount under the sale key, salted
// with the bidding investor's address
func (f *auctionFixture) sealBid(
	t *testing.T,
	investor common.Address,
	desired *big.Int,
) sale.SealedBid {
	t.Helper()
	ct, err := sealedbid.Encrypt(desired, f.pubKey, investor)
	require.NoError(t, err)
	return sale.SealedBid{
		Ciphertext: ct,
		Salt:       investor,
		PublicKey:  f.pubKey,
	}
}

func TestAuctionInitializeRequiresKey(t *testing.T) {
	f := newSaleFixture(t)
	a := sale.NewAuctionSale(f.engine())
	err := a.Initialize(testConfig())
	assert.ErrorIs(t, err, sealedbid.ErrInvalidPublicKey)
}

func TestAuctionCommitBidIntegrity(t *testing.T) {
	f := newAuctionFixture(t)

	// The plain commitment path is closed on auctions
	err := f.sale.Sale.Commit(investor1, big.NewInt(1_000))
	assert.ErrorIs(t, err, sale.ErrMissingSealedBid)

	bid := f.sealBid(t, investor1, big.NewInt(50_000))

	// A bid encrypted under a different key snapshot is rejected
	_, otherPub, err := sealedbid.GenerateKeypair()
	require.NoError(t, err)
	tampered := bid
	tampered.PublicKey = otherPub
	err = f.sale.Commit(investor1, big.NewInt(1_000), tampered)
	assert.ErrorIs(t, err, sale.ErrBidPublicKeyMismatch)

	// The salt must be the committing investor's own identity
	tampered = bid
	tampered.Salt = investor2
	err = f.sale.Commit(investor1, big.NewInt(1_000), tampered)
	assert.ErrorIs(t, err, sale.ErrBidSaltMismatch)

	// No capital moved on the rejected attempts
	assert.Empty(t, f.bidToken.transfers)

	require.NoError(t, f.sale.Commit(investor1, big.NewInt(1_000), bid))
	got, err := f.sale.SealedBidFor(investor1)
	require.NoError(t, err)
	assert.Equal(t, bid, got)

	_, err = f.sale.SealedBidFor(investor2)
	assert.ErrorIs(t, err, sale.ErrNoPosition)
}

func TestAuctionRevealFlow(t *testing.T) {
	f := newAuctionFixture(t)
	cfg := testConfig()
	var root merkle.Hash

	err := f.sale.PublishResults(
		operatorAddr, root, big.NewInt(1), big.NewInt(1), f.privKey,
	)
	assert.ErrorIs(t, err, sale.ErrRevealLockNotEngaged)

	err = f.sale.InitializeResultsPublication(operatorAddr)
	assert.ErrorIs(t, err, sale.ErrRefundPeriodNotOver)

	advancePastRefund(f.saleFixture, cfg)
	err = f.sale.InitializeResultsPublication(strangerAddr)
	assert.ErrorIs(t, err, sale.ErrNotOperator)
	require.NoError(t, f.sale.InitializeResultsPublication(operatorAddr))
	assert.True(t, f.sale.Status().RevealLockEngaged)
	err = f.sale.InitializeResultsPublication(operatorAddr)
	assert.ErrorIs(t, err, sale.ErrRevealLockEngaged)

	// The project cannot cancel out from under a reveal in progress
	err = f.sale.Cancel(projectAdminAddr)
	assert.ErrorIs(t, err, sale.ErrRevealLockEngaged)

	// A wrong key fails the reveal but leaves it retriable
	wrongPriv, _, err := sealedbid.GenerateKeypair()
	require.NoError(t, err)
	err = f.sale.PublishResults(
		operatorAddr, root, big.NewInt(1_000), big.NewInt(1_000), wrongPriv,
	)
	assert.ErrorIs(t, err, sealedbid.ErrKeyMismatch)
	assert.True(t, f.sale.Status().RevealLockEngaged)
	assert.False(t, f.sale.Status().ResultsPublished)

	require.NoError(t, f.sale.PublishResults(
		operatorAddr, root, big.NewInt(1_000), big.NewInt(1_000), f.privKey,
	))
	status := f.sale.Status()
	assert.True(t, status.ResultsPublished)
	assert.True(t, status.PrivateKeyPublished)
	assert.False(t, status.RevealLockEngaged)

	revealed, err := f.sale.PrivateKey()
	require.NoError(t, err)
	assert.Equal(t, f.privKey, revealed)

	err = f.sale.PublishResults(
		operatorAddr, root, big.NewInt(1_000), big.NewInt(1_000), f.privKey,
	)
	assert.ErrorIs(t, err, sale.ErrPrivateKeyAlreadyPublished)
	err = f.sale.InitializeResultsPublication(operatorAddr)
	assert.ErrorIs(t, err, sale.ErrResultsAlreadyPublished)
}

func TestAuctionDecryptBid(t *testing.T) {
	f := newAuctionFixture(t)
	cfg := testConfig()
	desired := big.NewInt(123_456_789)
	bid := f.sealBid(t, investor1, desired)
	require.NoError(t, f.sale.Commit(investor1, big.NewInt(1_000), bid))

	_, err := f.sale.PrivateKey()
	assert.ErrorIs(t, err, sealedbid.ErrPrivateKeyNotRevealed)
	_, err = f.sale.DecryptBid(investor1, investor1)
	assert.ErrorIs(t, err, sealedbid.ErrPrivateKeyNotRevealed)

	advancePastRefund(f.saleFixture, cfg)
	require.NoError(t, f.sale.InitializeResultsPublication(operatorAddr))
	require.NoError(t, f.sale.PublishResults(
		operatorAddr,
		merkle.Hash{},
		big.NewInt(1_000),
		big.NewInt(1_000),
		f.privKey,
	))

	_, err = f.sale.DecryptBid(investor2, investor2)
	assert.ErrorIs(t, err, sale.ErrNoPosition)
	_, err = f.sale.DecryptBid(investor1, investor2)
	assert.ErrorIs(t, err, sealedbid.ErrSaltMismatch)

	plaintext, err := f.sale.DecryptBid(investor1, investor1)
	require.NoError(t, err)
	assert.Equal(t, desired, plaintext)
}

func TestAuctionExpiryCancelDuringStalledReveal(t *testing.T) {
	f := newAuctionFixture(t)
	cfg := testConfig()
	bid := f.sealBid(t, investor1, big.NewInt(50_000))
	require.NoError(t, f.sale.Commit(investor1, big.NewInt(1_000), bid))

	advancePastRefund(f.saleFixture, cfg)
	require.NoError(t, f.sale.InitializeResultsPublication(operatorAddr))
	assert.True(t, f.sale.Status().RevealLockEngaged)

	// The operator goes dark mid-reveal. Once the lockup window
	// elapses anyone may still cancel and investors recover their
	// capital; only the project's voluntary Cancel is lock-gated.
	f.advanceTo(cfg.SalePeriod + cfg.LockupPeriod)
	err := f.sale.Cancel(projectAdminAddr)
	assert.ErrorIs(t, err, sale.ErrRevealLockEngaged)
	require.NoError(t, f.sale.CancelExpired(strangerAddr))
	status := f.sale.Status()
	assert.True(t, status.Canceled)
	assert.False(t, status.RevealLockEngaged)

	require.NoError(t, f.sale.WithdrawAfterCancel(investor1))
	got, ok := f.bidToken.lastTransferTo(investor1)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1_000), got.amount)
}

func TestAuctionCommitTransferFailureDiscardsBid(t *testing.T) {
	f := newAuctionFixture(t)
	bid := f.sealBid(t, investor1, big.NewInt(50_000))

	boom := errors.New("insufficient allowance")
	f.bidToken.failTransferFrom = boom
	err := f.sale.Commit(investor1, big.NewInt(1_000), bid)
	var transferErr *sale.TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.ErrorIs(t, err, boom)

	// No capital moved, so no bid may be on record either
	_, err = f.sale.SealedBidFor(investor1)
	assert.ErrorIs(t, err, sale.ErrNoPosition)
	assert.Zero(t, f.sale.Status().CapitalRaised.Sign())

	f.bidToken.failTransferFrom = nil
	require.NoError(t, f.sale.Commit(investor1, big.NewInt(1_000), bid))
	got, err := f.sale.SealedBidFor(investor1)
	require.NoError(t, err)
	assert.Equal(t, bid, got)
}

func TestAuctionRefundDiscardsBid(t *testing.T) {
	f := newAuctionFixture(t)
	cfg := testConfig()
	bid := f.sealBid(t, investor1, big.NewInt(50_000))
	require.NoError(t, f.sale.Commit(investor1, big.NewInt(1_000), bid))

	f.advanceTo(cfg.SalePeriod)
	require.NoError(t, f.sale.Refund(investor1))
	_, err := f.sale.SealedBidFor(investor1)
	assert.ErrorIs(t, err, sale.ErrNoSealedBid)
}
