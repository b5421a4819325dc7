package location

import (
	"millstock/internal/domain"
)

// Repository defines the interface for Location persistence.
// GetByCode expects canonical codes; callers normalize first.
type Repository interface {
	domain.CatalogRepository[*Location]
}
