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
)

// FixedPriceSale sells the ask asset at a fixed bid-asset price per
// token. The price is informational for the engine: per-investor
// allocations still arrive through the operator's published root, but
// a fixed-price sale always has an ask asset and a non-zero price.
type FixedPriceSale struct {
	*Sale
	tokenPrice *big.Int
}

// NewFixedPriceSale constructs an uninitialized fixed-price sale
func NewFixedPriceSale(engine EngineConfig) *FixedPriceSale {
	return &FixedPriceSale{Sale: NewSale(engine)}
}

// Initialize performs the one-time setup with the sale's token price
// in bid-asset units
func (f *FixedPriceSale) Initialize(
	config Config,
	tokenPrice *big.Int,
) error {
	if tokenPrice == nil || tokenPrice.Sign() <= 0 {
		return fmt.Errorf("%w: token price", ErrZeroValue)
	}
	if !config.HasAskAsset() {
		return ErrNoAskAsset
	}
	if err := f.Sale.Initialize(config); err != nil {
		return err
	}
	f.mu.Lock()
	f.tokenPrice = new(big.Int).Set(tokenPrice)
	f.mu.Unlock()
	return nil
}

// TokenPrice returns the configured price per ask token
func (f *FixedPriceSale) TokenPrice() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.tokenPrice)
}
