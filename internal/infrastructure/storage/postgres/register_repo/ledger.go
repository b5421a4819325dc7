// Package register_repo provides PostgreSQL implementations for register
// repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/domain/registers/stockledger"
	"millstock/internal/infrastructure/storage/postgres"
)

const stockLedgerTable = "reg_stock_ledger"

var stockLedgerColumns = []string{
	"line_id", "recorder_id", "recorder_version",
	"period", "record_type", "created_at",
	"kind",
	"location_code", "variety", "product_type", "packaging_brand", "packaging_kg",
	"bags", "net_kg",
}

// LedgerRepo implements stockledger.Repository. Legs are append-only rows;
// every balance the repo returns is a fold computed in SQL.
type LedgerRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func legRow(l entity.StockLeg) []any {
	return []any{
		l.LineID, l.RecorderID, l.RecorderVersion,
		l.Period, l.RecordType, l.CreatedAt,
		l.Kind,
		l.LocationCode, l.Variety, l.ProductType, l.PackagingBrand, l.PackagingKg,
		l.Bags, l.NetKg,
	}
}

// ReplaceLegs removes legs of older posting iterations for the recorder and
// inserts the new set.
func (r *LedgerRepo) ReplaceLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error {
	q := r.builder.Delete(stockLedgerTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		Where(squirrel.Lt{"recorder_version": recorderVersion})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete stale legs: %w", err)
	}

	if len(legs) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction. Posting always is.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		rows := make([][]any, 0, len(legs))
		for _, l := range legs {
			rows = append(rows, legRow(l))
		}
		if _, err := r.inserter.CopyFromSlice(ctx, stockLedgerTable, stockLedgerColumns, rows); err != nil {
			return fmt.Errorf("copy legs: %w", err)
		}
		return nil
	}

	ins := r.builder.Insert(stockLedgerTable).Columns(stockLedgerColumns...)
	for _, l := range legs {
		ins = ins.Values(legRow(l)...)
	}

	sql, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert legs: %w", err)
	}

	return nil
}

// DeleteLegs removes all legs for a recorder.
func (r *LedgerRepo) DeleteLegs(ctx context.Context, recorderID id.ID) error {
	q := r.builder.Delete(stockLedgerTable).
		Where(squirrel.Eq{"recorder_id": recorderID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete legs: %w", err)
	}

	return nil
}

// LegsByRecorder retrieves all legs a movement produced.
func (r *LedgerRepo) LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error) {
	q := r.builder.Select(stockLedgerColumns...).
		From(stockLedgerTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var legs []entity.StockLeg
	if err := pgxscan.Select(ctx, r.querier(ctx), &legs, sql, args...); err != nil {
		return nil, fmt.Errorf("select legs: %w", err)
	}

	return legs, nil
}

func keyEq(key stockkey.Key) squirrel.Eq {
	return squirrel.Eq{
		"location_code":   key.LocationCode,
		"variety":         key.Variety,
		"product_type":    key.ProductType,
		"packaging_brand": key.PackagingBrand,
		"packaging_kg":    key.PackagingKg,
	}
}

// cutoffCond builds the boundary-date condition for a profile: inclusive
// kinds count through asOf, strict kinds only before it.
func cutoffCond(profile stockledger.Profile, asOf time.Time) squirrel.Sqlizer {
	inclusive, strict := profile.Partition()
	if len(strict) == 0 {
		return squirrel.LtOrEq{"period": asOf}
	}

	return squirrel.Or{
		squirrel.And{
			squirrel.Eq{"kind": inclusive},
			squirrel.LtOrEq{"period": asOf},
		},
		squirrel.And{
			squirrel.Eq{"kind": strict},
			squirrel.Lt{"period": asOf},
		},
	}
}

const signedSums = `
	COALESCE(SUM(CASE WHEN record_type = 'receipt' THEN bags ELSE -bags END), 0) AS bags,
	COALESCE(SUM(CASE WHEN record_type = 'receipt' THEN net_kg ELSE -net_kg END), 0) AS net_kg`

// FoldBalance folds the signed legs for one key under a cutoff profile.
func (r *LedgerRepo) FoldBalance(ctx context.Context, key stockkey.Key, asOf time.Time, profile stockledger.Profile) (stockledger.Balance, error) {
	var balance stockledger.Balance

	q := r.builder.Select(signedSums).
		From(stockLedgerTable).
		Where(keyEq(key)).
		Where(cutoffCond(profile, asOf))

	sql, args, err := q.ToSql()
	if err != nil {
		return balance, fmt.Errorf("build fold query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), &balance, sql, args...); err != nil {
		return balance, fmt.Errorf("fold balance: %w", err)
	}

	return balance, nil
}

// SameDateSourceBags sums posted conversion-source bags dated exactly the
// given business date for one key.
func (r *LedgerRepo) SameDateSourceBags(ctx context.Context, key stockkey.Key, date time.Time) (int64, error) {
	q := r.builder.Select("COALESCE(SUM(bags), 0)").
		From(stockLedgerTable).
		Where(keyEq(key)).
		Where(squirrel.Eq{"kind": entity.LegKindConversionSource}).
		Where(squirrel.Eq{"period": date})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var bags int64
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&bags)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum same-date sources: %w", err)
	}

	return bags, nil
}

// BalanceGrid folds closing balances grouped by canonical key.
func (r *LedgerRepo) BalanceGrid(ctx context.Context, filter stockledger.GridFilter, asOf time.Time) ([]stockledger.GridRow, error) {
	keyCols := "location_code, variety, product_type, packaging_brand, packaging_kg"

	q := r.builder.Select(keyCols + "," + signedSums).
		From(stockLedgerTable).
		Where(squirrel.LtOrEq{"period": asOf})

	if filter.LocationCode != "" {
		q = q.Where(squirrel.Eq{"location_code": filter.LocationCode})
	}
	if filter.Variety != "" {
		q = q.Where(squirrel.Eq{"variety": filter.Variety})
	}
	if filter.ProductType != "" {
		q = q.Where(squirrel.Eq{"product_type": filter.ProductType})
	}
	if filter.PackagingBrand != "" {
		q = q.Where(squirrel.Eq{"packaging_brand": filter.PackagingBrand})
	}

	q = q.GroupBy(keyCols)

	if !filter.IncludeZero {
		q = q.Having("SUM(CASE WHEN record_type = 'receipt' THEN bags ELSE -bags END) <> 0")
	}

	q = q.OrderBy(keyCols)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build grid query: %w", err)
	}

	var rows []stockledger.GridRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select grid: %w", err)
	}

	return rows, nil
}

// ListLegs returns raw legs for the audit view, newest period first.
func (r *LedgerRepo) ListLegs(ctx context.Context, filter stockledger.LegFilter) ([]entity.StockLeg, error) {
	q := r.builder.Select(stockLedgerColumns...).
		From(stockLedgerTable)

	if filter.Key != nil {
		q = q.Where(keyEq(*filter.Key))
	}
	if filter.RecorderID != nil {
		q = q.Where(squirrel.Eq{"recorder_id": *filter.RecorderID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.DateTo})
	}

	q = q.OrderBy("period DESC", "created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var legs []entity.StockLeg
	if err := pgxscan.Select(ctx, r.querier(ctx), &legs, sql, args...); err != nil {
		return nil, fmt.Errorf("select legs: %w", err)
	}

	return legs, nil
}

// OrphanLegs returns legs whose recorder document no longer exists.
func (r *LedgerRepo) OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error) {
	sql := fmt.Sprintf(`
		SELECT l.line_id, l.recorder_id, l.recorder_version,
		       l.period, l.record_type, l.created_at,
		       l.kind,
		       l.location_code, l.variety, l.product_type, l.packaging_brand, l.packaging_kg,
		       l.bags, l.net_kg
		FROM %s l
		LEFT JOIN doc_stock_movements d ON d.id = l.recorder_id
		WHERE d.id IS NULL
		ORDER BY l.created_at
		LIMIT $1
	`, stockLedgerTable)

	var legs []entity.StockLeg
	if err := pgxscan.Select(ctx, r.querier(ctx), &legs, sql, limit); err != nil {
		return nil, fmt.Errorf("select orphan legs: %w", err)
	}

	return legs, nil
}

// Ensure interface compliance.
var _ stockledger.Repository = (*LedgerRepo)(nil)
