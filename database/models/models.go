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

// Package models defines the gorm models for the sale metadata store.
// Amounts are stored as decimal strings so no precision is lost going
// through SQLite.
package models

import (
	"time"
)

// MigrateModels is the list of models automigrated at store open
var MigrateModels = []any{
	&Sale{},
	&Position{},
}

// Sale is a persisted snapshot of one sale instance's status
type Sale struct {
	ID               uint   `gorm:"primarykey"`
	SaleID           string `gorm:"uniqueIndex"`
	Variant          string
	StartTime        int64
	EndTime          int64
	RefundEndTime    int64
	LockupEndTime    int64
	CapitalRaised    string
	CapitalWithdrawn string
	TokensAllocated  string
	Canceled         bool
	Paused           bool
	ResultsPublished bool
	TokensSupplied   bool
	ProjectWithdrew  bool
	AllocationRoot   []byte
	CapitalRoot      []byte
	UpdatedAt        time.Time
}

func (Sale) TableName() string {
	return "sale"
}

// Position is a persisted snapshot of one investor's stake in a sale
type Position struct {
	ID            uint   `gorm:"primarykey"`
	SaleID        string `gorm:"index:idx_position_sale_investor,unique"`
	Investor      string `gorm:"index:idx_position_sale_investor,unique"`
	Committed     string
	Refunded      bool
	ExcessClaimed bool
	Settled       bool
	UpdatedAt     time.Time
}

func (Position) TableName() string {
	return "position"
}
