package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/maintenance"
	"millstock/internal/domain/movements"
	"millstock/internal/infrastructure/storage/postgres"
)

const stockMovementsTable = "doc_stock_movements"

// StockMovementRepo is the PostgreSQL repository for stock movement documents.
type StockMovementRepo struct {
	*BaseDocumentRepo[*movements.Movement]
	batch *postgres.BatchExecutor
}

// NewStockMovementRepo creates a new stock movement repository.
func NewStockMovementRepo(txManager *postgres.TxManager) *StockMovementRepo {
	return &StockMovementRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			stockMovementsTable,
			postgres.ExtractDBColumns[movements.Movement](),
			func() *movements.Movement { return &movements.Movement{} },
		),
		batch: postgres.NewBatchExecutor(txManager),
	}
}

var _ movements.Repository = (*StockMovementRepo)(nil)
var _ maintenance.MovementStore = (*StockMovementRepo)(nil)

// CreateBatch inserts all movements in a single round-trip.
// Requires a transaction context.
func (r *StockMovementRepo) CreateBatch(ctx context.Context, ms []*movements.Movement) error {
	if len(ms) == 0 {
		return nil
	}

	queries := make([]postgres.BatchQuery, 0, len(ms))
	for _, m := range ms {
		sql, args, err := r.insertQuery(m)
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert %s batch: %w", stockMovementsTable, err)
	}

	return nil
}

// ListPaltiMissingSourceBags returns approved conversions whose source bag
// snapshot is null, oldest first.
func (r *StockMovementRepo) ListPaltiMissingSourceBags(ctx context.Context, limit int) ([]*movements.Movement, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"type": movements.TypePalti}).
		Where(squirrel.Eq{"status": movements.StatusApproved}).
		Where(squirrel.Eq{"source_bags": nil}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date", "created_at").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*movements.Movement
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select conversions missing source bags: %w", err)
	}

	return items, nil
}

// SetSourceBags fills the source bag snapshot. The source_bags IS NULL guard
// keeps existing snapshots frozen.
func (r *StockMovementRepo) SetSourceBags(ctx context.Context, movementID id.ID, bags int64) (bool, error) {
	q := r.Builder().
		Update(stockMovementsTable).
		Set("source_bags", bags).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": movementID}).
		Where("source_bags IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("set source bags: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListPostedConversions returns posted conversions, oldest first, for the
// consistency audit.
func (r *StockMovementRepo) ListPostedConversions(ctx context.Context, limit int) ([]*movements.Movement, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"type": movements.TypePalti}).
		Where(squirrel.Eq{"posted": true}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date", "created_at").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*movements.Movement
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select posted conversions: %w", err)
	}

	return items, nil
}

// Restore re-inserts a snapshotted row. A live row with the same id wins and
// the call reports false.
func (r *StockMovementRepo) Restore(ctx context.Context, m *movements.Movement) (bool, error) {
	b, err := r.insertBuilder(m)
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	sql, args, err := b.Suffix("ON CONFLICT (id) DO NOTHING").ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("restore %s: %w", stockMovementsTable, err)
	}

	return result.RowsAffected() > 0, nil
}

// List retrieves movements with movement-specific filtering.
func (r *StockMovementRepo) List(ctx context.Context, filter movements.ListFilter) (domain.ListResult[*movements.Movement], error) {
	return r.ListWith(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.Type != nil {
			q = q.Where(squirrel.Eq{"type": *filter.Type})
		}
		if filter.Status != nil {
			q = q.Where(squirrel.Eq{"status": *filter.Status})
		}
		if filter.LocationCode != nil {
			q = q.Where(squirrel.Eq{"location_code": *filter.LocationCode})
		}
		if filter.Variety != nil {
			q = q.Where(squirrel.Eq{"variety": *filter.Variety})
		}
		if filter.ProductType != nil {
			q = q.Where(squirrel.Eq{"product_type": *filter.ProductType})
		}
		if filter.Posted != nil {
			q = q.Where(squirrel.Eq{"posted": *filter.Posted})
		}
		if filter.DateFrom != nil {
			q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
		}
		if filter.DateTo != nil {
			q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
		}
		return q
	})
}
