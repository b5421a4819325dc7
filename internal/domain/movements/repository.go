package movements

import (
	"context"
	"time"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository defines operations for stock movement documents.
type Repository interface {
	Create(ctx context.Context, m *Movement) error
	// CreateBatch inserts the whole batch in one round trip.
	CreateBatch(ctx context.Context, ms []*Movement) error
	GetByID(ctx context.Context, movementID id.ID) (*Movement, error)
	GetByNumber(ctx context.Context, number string) (*Movement, error)
	Update(ctx context.Context, m *Movement) error
	Delete(ctx context.Context, movementID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error)
	GetForUpdate(ctx context.Context, movementID id.ID) (*Movement, error)
}

// ListFilter for filtering stock movements.
type ListFilter struct {
	domain.ListFilter

	Type         *MovementType
	Status       *MovementStatus
	LocationCode *string
	Variety      *string
	ProductType  *string
	Posted       *bool
	DateFrom     *time.Time
	DateTo       *time.Time
}
