package document_repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/hamali"
	"millstock/internal/infrastructure/storage/postgres"
)

const hamaliEntriesTable = "doc_hamali_entries"

// HamaliEntryRepo is the PostgreSQL repository for hamali entry documents.
type HamaliEntryRepo struct {
	*BaseDocumentRepo[*hamali.HamaliEntry]
}

// NewHamaliEntryRepo creates a new hamali entry repository.
func NewHamaliEntryRepo(txManager *postgres.TxManager) *HamaliEntryRepo {
	return &HamaliEntryRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			hamaliEntriesTable,
			postgres.ExtractDBColumns[hamali.HamaliEntry](),
			func() *hamali.HamaliEntry { return &hamali.HamaliEntry{} },
		),
	}
}

var _ hamali.Repository = (*HamaliEntryRepo)(nil)

// List retrieves entries with entry-specific filtering.
func (r *HamaliEntryRepo) List(ctx context.Context, filter hamali.ListFilter) (domain.ListResult[*hamali.HamaliEntry], error) {
	return r.ListWith(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.WorkType != nil {
			q = q.Where(squirrel.Eq{"work_type": *filter.WorkType})
		}
		if filter.MovementID != nil {
			q = q.Where(squirrel.Eq{"movement_id": *filter.MovementID})
		}
		if filter.Unpriced != nil {
			if *filter.Unpriced {
				q = q.Where(squirrel.Eq{"amount": nil})
			} else {
				q = q.Where(squirrel.NotEq{"amount": nil})
			}
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

// ListUnpriced returns entries whose amount is still null, oldest first.
func (r *HamaliEntryRepo) ListUnpriced(ctx context.Context, limit int) ([]*hamali.HamaliEntry, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"amount": nil}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("date", "created_at").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*hamali.HamaliEntry
	if err := pgxscan.Select(ctx, r.querier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select unpriced entries: %w", err)
	}

	return entries, nil
}

// PriceEntry writes the price snapshot onto one entry. The amount IS NULL
// guard makes repeated backfill passes no-ops.
func (r *HamaliEntryRepo) PriceEntry(ctx context.Context, entryID id.ID, rateCode, rateType string, rate, amount types.Money, breakdown json.RawMessage) (bool, error) {
	q := r.Builder().
		Update(hamaliEntriesTable).
		Set("rate_code", rateCode).
		Set("rate_type", rateType).
		Set("rate", rate).
		Set("amount", amount).
		Set("breakdown", breakdown).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entryID}).
		Where("amount IS NULL")

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("price entry: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
