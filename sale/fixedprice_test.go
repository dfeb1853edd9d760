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
	"math/big"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPriceInitialize(t *testing.T) {
	f := newSaleFixture(t)

	s := sale.NewFixedPriceSale(f.engine())
	err := s.Initialize(testConfig(), nil)
	assert.ErrorIs(t, err, sale.ErrZeroValue)

	s = sale.NewFixedPriceSale(f.engine())
	err = s.Initialize(testConfig(), big.NewInt(0))
	assert.ErrorIs(t, err, sale.ErrZeroValue)

	// A fixed price is meaningless without a token to price
	cfg := testConfig()
	cfg.AskAsset = common.ZeroAddress
	s = sale.NewFixedPriceSale(f.engine())
	err = s.Initialize(cfg, big.NewInt(250))
	assert.ErrorIs(t, err, sale.ErrNoAskAsset)

	s = sale.NewFixedPriceSale(f.engine())
	require.NoError(t, s.Initialize(testConfig(), big.NewInt(250)))
	assert.Equal(t, big.NewInt(250), s.TokenPrice())
}

func TestFixedPriceTokenPriceIsolation(t *testing.T) {
	f := newSaleFixture(t)
	s := sale.NewFixedPriceSale(f.engine())
	require.NoError(t, s.Initialize(testConfig(), big.NewInt(250)))

	price := s.TokenPrice()
	price.SetInt64(1)
	assert.Equal(t, big.NewInt(250), s.TokenPrice())
}

func TestFixedPriceCommit(t *testing.T) {
	f := newSaleFixture(t)
	s := sale.NewFixedPriceSale(f.engine())
	require.NoError(t, s.Initialize(testConfig(), big.NewInt(250)))

	// The plain commitment path is open on this variant
	require.NoError(t, s.Commit(investor1, big.NewInt(1_000)))
	pos, err := s.Position(investor1)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000), pos.Committed)
}
