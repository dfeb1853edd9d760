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
	"encoding/json"
	"testing"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
}

func testJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := NewJournal("", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = journal.Close()
	})
	return journal
}

func TestJournalAppendSequence(t *testing.T) {
	journal := testJournal(t)

	for i := 1; i <= 5; i++ {
		seq, err := journal.Append(
			"sale-1",
			event.NewEvent("sale.commit", testPayload{
				Investor: "0x01",
				Amount:   "100",
			}),
		)
		require.NoError(t, err)
		// Sequences are gapless, starting at 1
		assert.Equal(t, uint64(i), seq)
	}

	// A different sale has its own sequence space
	seq, err := journal.Append(
		"sale-2",
		event.NewEvent("sale.commit", testPayload{}),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestJournalEntriesOrdered(t *testing.T) {
	journal := testJournal(t)

	types := []event.EventType{
		"sale.commit",
		"sale.refund",
		"sale.results_published",
	}
	for _, eventType := range types {
		_, err := journal.Append(
			"sale-1",
			event.NewEvent(eventType, testPayload{Amount: "1"}),
		)
		require.NoError(t, err)
	}

	entries, err := journal.Entries("sale-1")
	require.NoError(t, err)
	require.Len(t, entries, len(types))
	for i, entry := range entries {
		assert.Equal(t, "sale-1", entry.SaleID)
		assert.Equal(t, uint64(i+1), entry.Sequence)
		assert.Equal(t, types[i], entry.Type)

		var payload testPayload
		require.NoError(t, json.Unmarshal(entry.Data, &payload))
		assert.Equal(t, "1", payload.Amount)
	}
}

func TestJournalEntriesEmpty(t *testing.T) {
	journal := testJournal(t)
	entries, err := journal.Entries("missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournalPersistedSequence(t *testing.T) {
	dataDir := t.TempDir()

	journal, err := NewJournal(dataDir, nil)
	require.NoError(t, err)
	_, err = journal.Append(
		"sale-1",
		event.NewEvent("sale.commit", testPayload{}),
	)
	require.NoError(t, err)
	_, err = journal.Append(
		"sale-1",
		event.NewEvent("sale.refund", testPayload{}),
	)
	require.NoError(t, err)
	require.NoError(t, journal.Close())

	// Reopen and confirm the sequence resumes instead of restarting
	journal, err = NewJournal(dataDir, nil)
	require.NoError(t, err)
	defer journal.Close()
	seq, err := journal.Append(
		"sale-1",
		event.NewEvent("sale.cancel", testPayload{}),
	)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}
