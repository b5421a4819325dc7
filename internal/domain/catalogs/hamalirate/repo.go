package hamalirate

import (
	"context"

	"millstock/internal/core/types"
	"millstock/internal/domain"
)

// Repository defines the interface for HamaliRate persistence.
type Repository interface {
	domain.CatalogRepository[*HamaliRate]

	// FindRate picks the tariff band covering weightKg for a work type.
	// Bands are matched on [min, max] inclusive; a zero max is open-ended.
	FindRate(ctx context.Context, workType string, weightKg types.Quantity) (*HamaliRate, error)

	// ListByWorkType returns all bands for a work type, lightest band first.
	ListByWorkType(ctx context.Context, workType string) ([]*HamaliRate, error)
}
