package stockledger

import (
	"context"
	"time"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
)

// Balance is a folded position for one canonical key.
type Balance struct {
	Bags  int64          `db:"bags" json:"bags"`
	NetKg types.Quantity `db:"net_kg" json:"netKg"`
}

// Quintals returns the position weight in quintals.
func (b Balance) Quintals() types.Quantity {
	return types.KgToQuintals(b.NetKg)
}

// GridRow is one line of the grouped balance report.
type GridRow struct {
	stockkey.Key

	Bags  int64          `db:"bags" json:"bags"`
	NetKg types.Quantity `db:"net_kg" json:"netKg"`
}

// GridFilter narrows the balance grid. Empty fields match everything;
// values must be canonical (normalize at the boundary).
type GridFilter struct {
	LocationCode   string
	Variety        string
	ProductType    string
	PackagingBrand string

	// IncludeZero keeps rows that folded to zero bags
	IncludeZero bool
}

// LegFilter narrows the audit view over raw legs.
type LegFilter struct {
	Key        *stockkey.Key
	RecorderID *id.ID
	Kind       *entity.LegKind
	DateFrom   *time.Time
	DateTo     *time.Time

	Limit  int
	Offset int
}

// Repository defines operations for the stock ledger register.
type Repository interface {
	// Leg operations (called during posting, inside a transaction)

	// ReplaceLegs removes legs of older posting iterations for the
	// recorder and inserts the new set.
	ReplaceLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error

	// DeleteLegs removes all legs for a recorder (unposting).
	DeleteLegs(ctx context.Context, recorderID id.ID) error

	// LegsByRecorder retrieves all legs a movement produced.
	LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error)

	// Fold operations

	// FoldBalance folds the signed legs for one key under a cutoff profile.
	FoldBalance(ctx context.Context, key stockkey.Key, asOf time.Time, profile Profile) (Balance, error)

	// SameDateSourceBags sums posted conversion-source bags dated exactly
	// the given business date for one key.
	SameDateSourceBags(ctx context.Context, key stockkey.Key, date time.Time) (int64, error)

	// BalanceGrid folds closing balances grouped by canonical key.
	BalanceGrid(ctx context.Context, filter GridFilter, asOf time.Time) ([]GridRow, error)

	// Audit

	// ListLegs returns raw legs for the audit view, newest period first.
	ListLegs(ctx context.Context, filter LegFilter) ([]entity.StockLeg, error)

	// Maintenance

	// OrphanLegs returns legs whose recorder document no longer exists.
	OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error)
}
