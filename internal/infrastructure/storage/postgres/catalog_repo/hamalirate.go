package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/infrastructure/storage/postgres"
)

const hamaliRateTable = "cat_hamali_rates"

// HamaliRateRepo implements hamalirate.Repository.
type HamaliRateRepo struct {
	*BaseCatalogRepo[*hamalirate.HamaliRate]
}

// NewHamaliRateRepo creates a new hamali rate repository.
func NewHamaliRateRepo(txManager *postgres.TxManager) *HamaliRateRepo {
	return &HamaliRateRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*hamalirate.HamaliRate](
			txManager,
			hamaliRateTable,
			postgres.ExtractDBColumns[hamalirate.HamaliRate](),
			func() *hamalirate.HamaliRate { return &hamalirate.HamaliRate{} },
		),
	}
}

// FindRate picks the band covering weightKg for a work type. Bounds are
// inclusive; max_weight_kg = 0 means open-ended. The tightest (highest-min)
// matching band wins.
func (r *HamaliRateRepo) FindRate(ctx context.Context, workType string, weightKg types.Quantity) (*hamalirate.HamaliRate, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(hamaliRateTable).
		Where(squirrel.Eq{"work_type": workType}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.LtOrEq{"min_weight_kg": weightKg}).
		Where(squirrel.Or{
			squirrel.Eq{"max_weight_kg": 0},
			squirrel.GtOrEq{"max_weight_kg": weightKg},
		}).
		OrderBy("min_weight_kg DESC").
		Limit(1)

	return r.FindOne(ctx, q)
}

// ListByWorkType returns all bands for a work type, lightest band first.
func (r *HamaliRateRepo) ListByWorkType(ctx context.Context, workType string) ([]*hamalirate.HamaliRate, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(hamaliRateTable).
		Where(squirrel.Eq{"work_type": workType}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("min_weight_kg ASC")

	return r.FindMany(ctx, q)
}
