package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/infrastructure/storage/postgres"
)

const packagingTable = "cat_packagings"

// PackagingRepo implements packaging.Repository.
type PackagingRepo struct {
	*BaseCatalogRepo[*packaging.Packaging]
}

// NewPackagingRepo creates a new packaging repository.
func NewPackagingRepo(txManager *postgres.TxManager) *PackagingRepo {
	return &PackagingRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*packaging.Packaging](
			txManager,
			packagingTable,
			postgres.ExtractDBColumns[packaging.Packaging](),
			func() *packaging.Packaging { return &packaging.Packaging{} },
		),
	}
}

// FindByBrandAndKg retrieves a packaging by canonical brand and weight.
// keyKg is the fixed 2-decimal rendering ("26.00"); parsing normalizes
// it to the same scaled integer as "26", so both match the same row.
func (r *PackagingRepo) FindByBrandAndKg(ctx context.Context, brand, keyKg string) (*packaging.Packaging, error) {
	kg, err := types.ParseQuantity(keyKg)
	if err != nil {
		return nil, apperror.NewValidation("invalid packaging weight").
			WithDetail("kg", keyKg).
			WithCause(err)
	}

	q := r.Builder().
		Select(r.selectCols...).
		From(packagingTable).
		Where(squirrel.Eq{"brand": brand}).
		Where(squirrel.Eq{"kg_per_bag": kg}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	return r.FindOne(ctx, q)
}

// ListByBrand retrieves all weights registered for a brand, lightest first.
func (r *PackagingRepo) ListByBrand(ctx context.Context, brand string) ([]*packaging.Packaging, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(packagingTable).
		Where(squirrel.Eq{"brand": brand}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("kg_per_bag ASC")

	return r.FindMany(ctx, q)
}

// IsReferenced reports whether any movement references this packaging: as
// its main packaging, or as either side of a conversion.
func (r *PackagingRepo) IsReferenced(ctx context.Context, pkgID id.ID) (bool, error) {
	q := r.Builder().
		Select("1").
		From("doc_stock_movements").
		Where(squirrel.Or{
			squirrel.Eq{"packaging_id": pkgID},
			squirrel.Eq{"source_packaging_id": pkgID},
			squirrel.Eq{"target_packaging_id": pkgID},
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check packaging references: %w", err)
	}

	return true, nil
}
