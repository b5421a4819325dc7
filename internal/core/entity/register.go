// Package entity provides core domain entities.
package entity

import (
	"time"

	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
)

// RecordType defines movement direction for the stock ledger.
type RecordType string

const (
	// RecordTypeReceipt increases balance
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance
	RecordTypeExpense RecordType = "expense"
)

// LegKind identifies what produced a ledger leg. Balance and availability
// queries treat kinds differently on the boundary date, so the kind is a
// first-class column, not an annotation.
type LegKind string

const (
	LegKindProduction       LegKind = "production"
	LegKindPurchase         LegKind = "purchase"
	LegKindSale             LegKind = "sale"
	LegKindConversionSource LegKind = "conversion_source"
	LegKindConversionTarget LegKind = "conversion_target"
)

// RecordType returns the ledger direction implied by the kind.
func (k LegKind) RecordType() RecordType {
	switch k {
	case LegKindSale, LegKindConversionSource:
		return RecordTypeExpense
	default:
		return RecordTypeReceipt
	}
}

// Valid reports whether the kind is one of the known values.
func (k LegKind) Valid() bool {
	switch k {
	case LegKindProduction, LegKindPurchase, LegKindSale,
		LegKindConversionSource, LegKindConversionTarget:
		return true
	}
	return false
}

// LegBase contains common fields for all ledger legs.
// Legs are immutable - they are never updated, only deleted and recreated.
type LegBase struct {
	// LineID is unique identifier for this leg (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the movement document that created this leg
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderVersion tracks which posting iteration created this leg
	// Allows efficient cleanup: DELETE WHERE recorder_id = X AND recorder_version < Y
	RecorderVersion int `db:"recorder_version" json:"recorderVersion"`

	// Period is the business date for the leg (for as-of queries)
	Period time.Time `db:"period" json:"period"`

	// RecordType: receipt or expense
	RecordType RecordType `db:"record_type" json:"recordType"`

	// CreatedAt is when the leg was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// StockLeg is one row of the stock ledger register.
// Balances are never persisted; every balance is a fold over these rows.
type StockLeg struct {
	LegBase

	// Kind drives boundary-date treatment in availability checks
	Kind LegKind `db:"kind" json:"kind"`

	// Dimensions: the canonical stock key
	stockkey.Key

	// Resources
	Bags  int64          `db:"bags" json:"bags"`
	NetKg types.Quantity `db:"net_kg" json:"netKg"`
}

// NewStockLeg creates a ledger leg. Direction is derived from the kind.
func NewStockLeg(
	recorderID id.ID,
	recorderVersion int,
	period time.Time,
	kind LegKind,
	key stockkey.Key,
	bags int64,
	netKg types.Quantity,
) StockLeg {
	return StockLeg{
		LegBase: LegBase{
			LineID:          id.New(),
			RecorderID:      recorderID,
			RecorderVersion: recorderVersion,
			Period:          period,
			RecordType:      kind.RecordType(),
			CreatedAt:       time.Now().UTC(),
		},
		Kind:  kind,
		Key:   key,
		Bags:  bags,
		NetKg: netKg,
	}
}

// SignedBags returns bag count with sign based on record type.
// Receipt = positive, Expense = negative.
func (l *StockLeg) SignedBags() int64 {
	if l.RecordType == RecordTypeExpense {
		return -l.Bags
	}
	return l.Bags
}

// SignedKg returns net weight with sign based on record type.
func (l *StockLeg) SignedKg() types.Quantity {
	if l.RecordType == RecordTypeExpense {
		return l.NetKg.Neg()
	}
	return l.NetKg
}
