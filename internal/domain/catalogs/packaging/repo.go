package packaging

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository defines the interface for Packaging persistence.
type Repository interface {
	domain.CatalogRepository[*Packaging]

	// FindByBrandAndKg retrieves a packaging by canonical brand and the
	// fixed 2-decimal weight rendering ("26.00").
	FindByBrandAndKg(ctx context.Context, brand, keyKg string) (*Packaging, error)

	// ListByBrand retrieves all weights registered for a brand.
	ListByBrand(ctx context.Context, brand string) ([]*Packaging, error)

	// IsReferenced reports whether any movement references this packaging.
	// Referenced packagings have frozen brands and weights.
	IsReferenced(ctx context.Context, id id.ID) (bool, error)
}
