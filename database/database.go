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

// Package database implements the service runtime's persistence: a
// SQLite metadata store for sale and position snapshots, and a badger
// append-only journal for the audit event stream the operator's
// off-chain allocation jobs consume.
package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/database/models"
	"github.com/Legion-Team/legion-protocol-contracts-sub000/sale"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Config for opening a Database
type Config struct {
	// DataDir is the storage root; empty means fully in-memory, which
	// is useful for tests
	DataDir      string
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Tracing enables the gorm OpenTelemetry plugin
	Tracing bool
}

// Database bundles the metadata store and the audit journal
type Database struct {
	logger   *slog.Logger
	metadata *gorm.DB
	journal  *Journal
	dataDir  string
}

// New opens (or creates) the store under the configured data
// directory
func New(config Config) (*Database, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.DataDir != "" {
		if _, err := os.Stat(config.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
	}
	metadata, err := openMetadata(config.DataDir, config.Tracing)
	if err != nil {
		return nil, err
	}
	journal, err := NewJournal(config.DataDir, logger)
	if err != nil {
		return nil, err
	}
	db := &Database{
		logger:   logger,
		metadata: metadata,
		journal:  journal,
		dataDir:  config.DataDir,
	}
	for _, model := range models.MigrateModels {
		if err := db.metadata.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("migrate metadata: %w", err)
		}
	}
	return db, nil
}

func openMetadata(dataDir string, enableTracing bool) (*gorm.DB, error) {
	var dsn string
	if dataDir == "" {
		// cache=shared lets multiple connections see the same
		// in-memory database
		dsn = "file::memory:?cache=shared"
	} else {
		metadataDbPath := filepath.Join(dataDir, "metadata.sqlite")
		connOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		dsn = fmt.Sprintf("file:%s?%s", metadataDbPath, connOpts)
	}
	metadata, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	if enableTracing {
		if err := metadata.Use(
			tracing.NewPlugin(tracing.WithoutMetrics()),
		); err != nil {
			return nil, err
		}
	}
	return metadata, nil
}

// Journal returns the audit-log journal
func (d *Database) Journal() *Journal {
	return d.journal
}

// SaveSale upserts a sale status snapshot
func (d *Database) SaveSale(
	saleID string,
	variant string,
	status sale.Status,
) error {
	record := models.Sale{
		SaleID:           saleID,
		Variant:          variant,
		StartTime:        status.StartTime,
		EndTime:          status.EndTime,
		RefundEndTime:    status.RefundEndTime,
		LockupEndTime:    status.LockupEndTime,
		CapitalRaised:    status.CapitalRaised.String(),
		CapitalWithdrawn: status.CapitalWithdrawn.String(),
		TokensAllocated:  status.TokensAllocated.String(),
		Canceled:         status.Canceled,
		Paused:           status.Paused,
		ResultsPublished: status.ResultsPublished,
		TokensSupplied:   status.TokensSupplied,
		ProjectWithdrew:  status.ProjectWithdrew,
		AllocationRoot:   status.AllocationRoot[:],
		CapitalRoot:      status.CapitalRoot[:],
	}
	result := d.metadata.
		Where(models.Sale{SaleID: saleID}).
		Assign(record).
		FirstOrCreate(&models.Sale{})
	return result.Error
}

// GetSale loads a persisted sale snapshot
func (d *Database) GetSale(saleID string) (models.Sale, error) {
	var record models.Sale
	result := d.metadata.
		Where(models.Sale{SaleID: saleID}).
		First(&record)
	return record, result.Error
}

// SavePosition upserts an investor position snapshot
func (d *Database) SavePosition(
	saleID string,
	position sale.Position,
) error {
	record := models.Position{
		SaleID:        saleID,
		Investor:      position.Investor.String(),
		Committed:     position.Committed.String(),
		Refunded:      position.Refunded,
		ExcessClaimed: position.ExcessClaimed,
		Settled:       position.Settled,
	}
	result := d.metadata.
		Where(models.Position{
			SaleID:   saleID,
			Investor: position.Investor.String(),
		}).
		Assign(record).
		FirstOrCreate(&models.Position{})
	return result.Error
}

// GetPosition loads a persisted position snapshot
func (d *Database) GetPosition(
	saleID string,
	investor common.Address,
) (models.Position, error) {
	var record models.Position
	result := d.metadata.
		Where(models.Position{
			SaleID:   saleID,
			Investor: investor.String(),
		}).
		First(&record)
	return record, result.Error
}

// Close shuts down both stores
func (d *Database) Close() error {
	var errs []error
	if sqlDB, err := d.metadata.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.journal.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
