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

package sealedbid

import (
	"math/big"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInvestor = common.MustHexToAddress(
	"0x1111111111111111111111111111111111111111",
)

func TestGenerateKeypairRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeypair()
	require.NoError(t, err)
	assert.NoError(t, pub.Validate())
	assert.NoError(t, VerifyKeypair(priv, pub))

	recovered, err := RecoverPublicKey(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, recovered)
}

func TestVerifyKeypairMismatch(t *testing.T) {
	priv, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, otherPub, err := GenerateKeypair()
	require.NoError(t, err)
	assert.ErrorIs(t, VerifyKeypair(priv, otherPub), ErrKeyMismatch)
}

func TestRecoverPublicKeyZeroScalar(t *testing.T) {
	var zero PrivateKey
	_, err := RecoverPublicKey(zero)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestParsePublicKey(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)

	parsed, err := ParsePublicKey(pub[:])
	require.NoError(t, err)
	assert.Equal(t, pub, parsed)

	// Wrong length
	_, err = ParsePublicKey(pub[:16])
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	// Not on the curve
	garbage := make([]byte, PublicKeySize)
	garbage[0] = 0x02
	for i := 1; i < PublicKeySize; i++ {
		garbage[i] = 0xff
	}
	_, err = ParsePublicKey(garbage)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeypair()
	require.NoError(t, err)

	amounts := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(1_000_000),
		new(big.Int).Lsh(big.NewInt(1), 128),
	}
	for _, amount := range amounts {
		ct, err := Encrypt(amount, pub, testInvestor)
		require.NoError(t, err)

		got, err := Decrypt(ct, testInvestor, priv)
		require.NoError(t, err)
		assert.Zero(t, got.Cmp(amount), "amount %s", amount)
	}
}

func TestDecryptWrongSalt(t *testing.T) {
	priv, pub, err := GenerateKeypair()
	require.NoError(t, err)

	amount := big.NewInt(42_000)
	ct, err := Encrypt(amount, pub, testInvestor)
	require.NoError(t, err)

	otherSalt := common.MustHexToAddress(
		"0x2222222222222222222222222222222222222222",
	)
	got, err := Decrypt(ct, otherSalt, priv)
	require.NoError(t, err)
	assert.NotZero(t, got.Cmp(amount))
}

func TestDecryptWrongPrivateKey(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)
	otherPriv, _, err := GenerateKeypair()
	require.NoError(t, err)

	amount := big.NewInt(777)
	ct, err := Encrypt(amount, pub, testInvestor)
	require.NoError(t, err)

	got, err := Decrypt(ct, testInvestor, otherPriv)
	require.NoError(t, err)
	assert.NotZero(t, got.Cmp(amount))
}

func TestEncryptAmountOutOfRange(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)

	_, err = Encrypt(nil, pub, testInvestor)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	_, err = Encrypt(big.NewInt(-1), pub, testInvestor)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	_, err = Encrypt(curveOrder, pub, testInvestor)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)
}

func TestEncryptZeroSalt(t *testing.T) {
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)
	_, err = Encrypt(big.NewInt(1), pub, common.ZeroAddress)
	assert.ErrorIs(t, err, ErrZeroSalt)
}

func TestDecryptZeroPrivateKey(t *testing.T) {
	var zero PrivateKey
	_, err := Decrypt(Ciphertext{}, testInvestor, zero)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestCiphertextDeterministic(t *testing.T) {
	// Same key, salt, and amount always yield the same ciphertext;
	// different salts diverge
	_, pub, err := GenerateKeypair()
	require.NoError(t, err)

	amount := big.NewInt(123_456)
	ct1, err := Encrypt(amount, pub, testInvestor)
	require.NoError(t, err)
	ct2, err := Encrypt(amount, pub, testInvestor)
	require.NoError(t, err)
	assert.Equal(t, ct1, ct2)

	otherSalt := common.MustHexToAddress(
		"0x3333333333333333333333333333333333333333",
	)
	ct3, err := Encrypt(amount, pub, otherSalt)
	require.NoError(t, err)
	assert.NotEqual(t, ct1, ct3)
}
