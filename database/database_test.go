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

package database

import (
	"math/big"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestSaveGetSale(t *testing.T) {
	db := testDatabase(t)

	status := sale.Status{
		StartTime:        1000,
		EndTime:          4600,
		RefundEndTime:    1_214_600,
		LockupEndTime:    3_460_600,
		CapitalRaised:    big.NewInt(123_456_789),
		CapitalWithdrawn: big.NewInt(0),
		TokensAllocated:  big.NewInt(1_000_000),
		ResultsPublished: true,
	}
	status.AllocationRoot[0] = 0xaa

	require.NoError(t, db.SaveSale("sale-1", "fixed-price", status))

	record, err := db.GetSale("sale-1")
	require.NoError(t, err)
	assert.Equal(t, "sale-1", record.SaleID)
	assert.Equal(t, "fixed-price", record.Variant)
	assert.Equal(t, int64(4600), record.EndTime)
	assert.Equal(t, "123456789", record.CapitalRaised)
	assert.True(t, record.ResultsPublished)
	assert.Equal(t, status.AllocationRoot[:], record.AllocationRoot)

	// Upsert overwrites the snapshot in place
	status.CapitalRaised = big.NewInt(200)
	require.NoError(t, db.SaveSale("sale-1", "fixed-price", status))
	record, err = db.GetSale("sale-1")
	require.NoError(t, err)
	assert.Equal(t, "200", record.CapitalRaised)

	_, err = db.GetSale("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaveGetPosition(t *testing.T) {
	db := testDatabase(t)

	investor := common.MustHexToAddress(
		"0x4444444444444444444444444444444444444444",
	)
	pos := sale.Position{
		Investor:  investor,
		Committed: big.NewInt(5_000),
	}
	require.NoError(t, db.SavePosition("sale-1", pos))

	record, err := db.GetPosition("sale-1", investor)
	require.NoError(t, err)
	assert.Equal(t, investor.String(), record.Investor)
	assert.Equal(t, "5000", record.Committed)
	assert.False(t, record.Refunded)

	// Upsert
	pos.Refunded = true
	pos.Committed = big.NewInt(0)
	require.NoError(t, db.SavePosition("sale-1", pos))
	record, err = db.GetPosition("sale-1", investor)
	require.NoError(t, err)
	assert.True(t, record.Refunded)
	assert.Equal(t, "0", record.Committed)

	// Same investor under a different sale is a distinct row
	require.NoError(t, db.SavePosition("sale-2", sale.Position{
		Investor:  investor,
		Committed: big.NewInt(7),
	}))
	record, err = db.GetPosition("sale-2", investor)
	require.NoError(t, err)
	assert.Equal(t, "7", record.Committed)
}
