package hamali

import (
	"context"
	"encoding/json"
	"time"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
)

// Repository defines operations for hamali entry documents.
type Repository interface {
	Create(ctx context.Context, e *HamaliEntry) error
	GetByID(ctx context.Context, entryID id.ID) (*HamaliEntry, error)
	GetByNumber(ctx context.Context, number string) (*HamaliEntry, error)
	Update(ctx context.Context, e *HamaliEntry) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*HamaliEntry], error)

	// ListUnpriced returns entries whose amount is still null, oldest first.
	ListUnpriced(ctx context.Context, limit int) ([]*HamaliEntry, error)

	// PriceEntry writes the price snapshot onto one entry, guarded so a row
	// already priced is never overwritten. Returns whether the row changed.
	PriceEntry(ctx context.Context, entryID id.ID, rateCode, rateType string, rate, amount types.Money, breakdown json.RawMessage) (bool, error)
}

// ListFilter for filtering hamali entries.
type ListFilter struct {
	domain.ListFilter

	WorkType   *string
	MovementID *id.ID
	Unpriced   *bool
	DateFrom   *time.Time
	DateTo     *time.Time
}
