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

package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatesValidate(t *testing.T) {
	valid := Rates{
		OperatorOnCapital: 250,
		OperatorOnTokens:  100,
		ReferrerOnCapital: 50,
		ReferrerOnTokens:  0,
	}
	assert.NoError(t, valid.Validate())

	assert.NoError(t, Rates{}.Validate())
	assert.NoError(
		t,
		Rates{OperatorOnCapital: BasisPointsDenominator}.Validate(),
	)

	invalid := Rates{ReferrerOnTokens: BasisPointsDenominator + 1}
	err := invalid.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBps)
}

func TestApply(t *testing.T) {
	testDefs := []struct {
		amount   int64
		bps      uint16
		expected int64
	}{
		{amount: 10_000, bps: 250, expected: 250},
		{amount: 1, bps: 9999, expected: 0},
		{amount: 0, bps: 10_000, expected: 0},
		{amount: 123_456_789, bps: 1, expected: 12_345},
		{amount: 777, bps: 10_000, expected: 777},
	}
	for _, testDef := range testDefs {
		got := Apply(big.NewInt(testDef.amount), testDef.bps)
		assert.Equal(
			t,
			testDef.expected,
			got.Int64(),
			"Apply(%d, %d)",
			testDef.amount,
			testDef.bps,
		)
	}
}

func TestSplitCapitalConservation(t *testing.T) {
	rates := Rates{
		OperatorOnCapital: 250,
		ReferrerOnCapital: 100,
	}
	raised := big.NewInt(1_000_003)
	split := SplitCapital(raised, rates)
	// The three legs always sum back to the raised amount
	total := new(big.Int).Add(split.OperatorFee, split.ReferrerFee)
	total.Add(total, split.NetToProject)
	assert.Zero(t, total.Cmp(raised))
	assert.Equal(t, int64(25_000), split.OperatorFee.Int64())
	assert.Equal(t, int64(10_000), split.ReferrerFee.Int64())
}

func TestSplitCapitalZeroRates(t *testing.T) {
	split := SplitCapital(big.NewInt(500), Rates{})
	assert.Zero(t, split.OperatorFee.Sign())
	assert.Zero(t, split.ReferrerFee.Sign())
	assert.Equal(t, int64(500), split.NetToProject.Int64())
}

func TestSplitCapitalDoesNotMutateInput(t *testing.T) {
	raised := big.NewInt(10_000)
	SplitCapital(raised, Rates{OperatorOnCapital: 500})
	assert.Equal(t, int64(10_000), raised.Int64())
}

func TestRequiredSupply(t *testing.T) {
	rates := Rates{
		OperatorOnTokens: 200,
		ReferrerOnTokens: 50,
	}
	supply := RequiredSupply(big.NewInt(1_000_000), rates)
	assert.Equal(t, int64(20_000), supply.OperatorFee.Int64())
	assert.Equal(t, int64(5_000), supply.ReferrerFee.Int64())
	assert.Equal(t, int64(1_025_000), supply.Required.Int64())
}

func TestCheckDeclaredSupplyExactMatch(t *testing.T) {
	rates := Rates{
		OperatorOnTokens: 200,
		ReferrerOnTokens: 50,
	}
	allocated := big.NewInt(1_000_000)
	err := CheckDeclaredSupply(
		allocated,
		rates,
		big.NewInt(1_000_000),
		big.NewInt(20_000),
		big.NewInt(5_000),
	)
	assert.NoError(t, err)
}

func TestCheckDeclaredSupplyMismatch(t *testing.T) {
	rates := Rates{OperatorOnTokens: 200}
	allocated := big.NewInt(1_000_000)

	// Off-by-one on the token amount
	err := CheckDeclaredSupply(
		allocated,
		rates,
		big.NewInt(999_999),
		big.NewInt(20_000),
		big.NewInt(0),
	)
	require.Error(t, err)
	var mismatchErr *MismatchError
	require.True(t, errors.As(err, &mismatchErr))
	assert.Equal(t, "token amount", mismatchErr.Field)

	// Wrong operator fee
	err = CheckDeclaredSupply(
		allocated,
		rates,
		big.NewInt(1_000_000),
		big.NewInt(19_999),
		big.NewInt(0),
	)
	require.Error(t, err)
	require.True(t, errors.As(err, &mismatchErr))
	assert.Equal(t, "operator token fee", mismatchErr.Field)

	// Declaring a referrer fee when the rate is zero
	err = CheckDeclaredSupply(
		allocated,
		rates,
		big.NewInt(1_000_000),
		big.NewInt(20_000),
		big.NewInt(1),
	)
	require.Error(t, err)
	require.True(t, errors.As(err, &mismatchErr))
	assert.Equal(t, "referrer token fee", mismatchErr.Field)
}
