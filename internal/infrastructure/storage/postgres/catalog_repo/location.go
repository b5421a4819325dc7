package catalog_repo

import (
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/infrastructure/storage/postgres"
)

const locationTable = "cat_locations"

// LocationRepo implements location.Repository.
type LocationRepo struct {
	*BaseCatalogRepo[*location.Location]
}

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txManager *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*location.Location](
			txManager,
			locationTable,
			postgres.ExtractDBColumns[location.Location](),
			func() *location.Location { return &location.Location{} },
		),
	}
}
