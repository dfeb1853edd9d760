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

// Package fees implements the basis-point settlement arithmetic that
// splits raised capital and sold tokens among project, operator, and
// referrer.
package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

// BasisPointsDenominator is the bps fee unit (1 bps = 1/10_000)
const BasisPointsDenominator = 10_000

var ErrInvalidBps = errors.New("fee rate exceeds 10000 bps")

// MismatchError is returned when a declared fee or supply amount does
// not exactly match the computed expectation
type MismatchError struct {
	Field    string
	Expected *big.Int
	Actual   *big.Int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"%s mismatch: expected %s, got %s",
		e.Field,
		e.Expected.String(),
		e.Actual.String(),
	)
}

// Rates holds a sale's configured fee rates in basis points. A zero
// rate is valid and skips the corresponding transfer leg.
type Rates struct {
	OperatorOnCapital uint16
	OperatorOnTokens  uint16
	ReferrerOnCapital uint16
	ReferrerOnTokens  uint16
}

func (r Rates) Validate() error {
	for _, bps := range []uint16{
		r.OperatorOnCapital,
		r.OperatorOnTokens,
		r.ReferrerOnCapital,
		r.ReferrerOnTokens,
	} {
		if bps > BasisPointsDenominator {
			return fmt.Errorf("%w: %d", ErrInvalidBps, bps)
		}
	}
	return nil
}

// CapitalSplit is the settlement of raised capital
type CapitalSplit struct {
	OperatorFee  *big.Int
	ReferrerFee  *big.Int
	NetToProject *big.Int
}

// TokenSupply is the token amount a project must deliver to cover the
// investor allocation plus fees
type TokenSupply struct {
	OperatorFee *big.Int
	ReferrerFee *big.Int
	Required    *big.Int
}

// Apply computes amount * bps / 10_000, truncating
func Apply(amount *big.Int, bps uint16) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Div(out, big.NewInt(BasisPointsDenominator))
}

// SplitCapital settles raised capital into operator fee, referrer fee,
// and the net amount owed to the project
func SplitCapital(raised *big.Int, rates Rates) CapitalSplit {
	raised = common.CloneAmount(raised)
	operatorFee := Apply(raised, rates.OperatorOnCapital)
	referrerFee := Apply(raised, rates.ReferrerOnCapital)
	net := new(big.Int).Sub(raised, operatorFee)
	net.Sub(net, referrerFee)
	return CapitalSplit{
		OperatorFee:  operatorFee,
		ReferrerFee:  referrerFee,
		NetToProject: net,
	}
}

// RequiredSupply computes the token amount the project must supply to
// cover the published allocation plus token-denominated fees
func RequiredSupply(allocated *big.Int, rates Rates) TokenSupply {
	allocated = common.CloneAmount(allocated)
	operatorFee := Apply(allocated, rates.OperatorOnTokens)
	referrerFee := Apply(allocated, rates.ReferrerOnTokens)
	required := new(big.Int).Add(allocated, operatorFee)
	required.Add(required, referrerFee)
	return TokenSupply{
		OperatorFee: operatorFee,
		ReferrerFee: referrerFee,
		Required:    required,
	}
}

// CheckDeclaredSupply recomputes the expected token supply and fee
// components and rejects any declared value that is not an exact
// match. This prevents a project from under- or over-funding
// distribution.
func CheckDeclaredSupply(
	allocated *big.Int,
	rates Rates,
	declaredAmount *big.Int,
	declaredOperatorFee *big.Int,
	declaredReferrerFee *big.Int,
) error {
	expected := RequiredSupply(allocated, rates)
	if declaredAmount.Cmp(common.CloneAmount(allocated)) != 0 {
		return &MismatchError{
			Field:    "token amount",
			Expected: common.CloneAmount(allocated),
			Actual:   common.CloneAmount(declaredAmount),
		}
	}
	if declaredOperatorFee.Cmp(expected.OperatorFee) != 0 {
		return &MismatchError{
			Field:    "operator token fee",
			Expected: expected.OperatorFee,
			Actual:   common.CloneAmount(declaredOperatorFee),
		}
	}
	if declaredReferrerFee.Cmp(expected.ReferrerFee) != 0 {
		return &MismatchError{
			Field:    "referrer token fee",
			Expected: expected.ReferrerFee,
			Actual:   common.CloneAmount(declaredReferrerFee),
		}
	}
	return nil
}
