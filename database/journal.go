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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/event"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Entry is one journaled audit event. Sequences are gapless and
// strictly increasing per sale.
type Entry struct {
	SaleID    string          `json:"sale_id"`
	Sequence  uint64          `json:"sequence"`
	Type      event.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Journal is the badger-backed append-only audit log
type Journal struct {
	db     *badger.DB
	logger *slog.Logger
	// lastSeq caches the last assigned sequence per sale; populated
	// lazily from the store on first append
	lastSeq map[string]uint64
	mu      sync.Mutex
}

// NewJournal opens the journal under dataDir, or in memory when
// dataDir is empty
func NewJournal(dataDir string, logger *slog.Logger) (*Journal, error) {
	var badgerOpts badger.Options
	if dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
	} else {
		journalDir := filepath.Join(dataDir, "journal")
		badgerOpts = badger.DefaultOptions(journalDir).
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING).
			WithCompression(options.Snappy)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{
		db:      db,
		logger:  logger,
		lastSeq: make(map[string]uint64),
	}, nil
}

func journalKey(saleID string, seq uint64) []byte {
	key := make([]byte, 0, len(saleID)+9)
	key = append(key, []byte(saleID)...)
	key = append(key, 0x00)
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func journalPrefix(saleID string) []byte {
	return append([]byte(saleID), 0x00)
}

// Append journals an event for a sale and returns its assigned
// sequence
func (j *Journal) Append(saleID string, evt event.Event) (uint64, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal event data: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	last, ok := j.lastSeq[saleID]
	if !ok {
		last, err = j.loadLastSeq(saleID)
		if err != nil {
			return 0, err
		}
	}
	seq := last + 1
	entry := Entry{
		SaleID:    saleID,
		Sequence:  seq,
		Type:      evt.Type,
		Timestamp: evt.Timestamp,
		Data:      data,
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal journal entry: %w", err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(saleID, seq), value)
	})
	if err != nil {
		return 0, fmt.Errorf("append journal entry: %w", err)
	}
	j.lastSeq[saleID] = seq
	return seq, nil
}

// loadLastSeq finds the highest assigned sequence for a sale by
// seeking the end of its key range. Callers hold the mutex.
func (j *Journal) loadLastSeq(saleID string) (uint64, error) {
	var last uint64
	err := j.db.View(func(txn *badger.Txn) error {
		prefix := journalPrefix(saleID)
		itOpts := badger.DefaultIteratorOptions
		itOpts.Reverse = true
		itOpts.PrefetchValues = false
		it := txn.NewIterator(itOpts)
		defer it.Close()
		// Seek just past the end of this sale's range
		seekKey := journalKey(saleID, ^uint64(0))
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			last = binary.BigEndian.Uint64(key[len(key)-8:])
			return nil
		}
		return nil
	})
	return last, err
}

// Entries returns the full journaled stream for a sale in sequence
// order
func (j *Journal) Entries(saleID string) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		prefix := journalPrefix(saleID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var entry Entry
				if err := json.Unmarshal(value, &entry); err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// badgerLogger adapts slog to the badger logging interface
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &badgerLogger{logger: logger}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...), "component", "journal")
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...), "component", "journal")
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...), "component", "journal")
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...), "component", "journal")
}
