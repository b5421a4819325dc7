package stockledger

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/pkg/logger"
)

// Service provides ledger operations: recording legs during posting and
// deriving balances. Transactions are managed by the caller (posting flow).
type Service struct {
	repo Repository
}

// NewService creates a new stock ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordLegs writes the legs of one posting iteration, replacing any legs
// of earlier iterations. Called inside the posting transaction.
func (s *Service) RecordLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error {
	if len(legs) == 0 {
		return nil
	}

	for i, l := range legs {
		if l.Bags <= 0 {
			return apperror.NewValidation(fmt.Sprintf("leg %d: bags must be positive", i))
		}
		if !l.Kind.Valid() {
			return apperror.NewValidation(fmt.Sprintf("leg %d: unknown kind %q", i, l.Kind))
		}
		if l.Key.IsZero() {
			return apperror.NewValidation(fmt.Sprintf("leg %d: stock key is required", i))
		}
		if id.IsNil(l.RecorderID) {
			return apperror.NewValidation(fmt.Sprintf("leg %d: recorder_id is required", i))
		}
	}

	if err := s.repo.ReplaceLegs(ctx, recorderID, recorderVersion, legs); err != nil {
		return fmt.Errorf("replace legs: %w", err)
	}

	logger.Info(ctx, "recorded ledger legs",
		"recorder_id", recorderID,
		"recorder_version", recorderVersion,
		"count", len(legs),
	)

	return nil
}

// ReverseLegs removes all legs for a recorder (unposting).
func (s *Service) ReverseLegs(ctx context.Context, recorderID id.ID) error {
	if err := s.repo.DeleteLegs(ctx, recorderID); err != nil {
		return fmt.Errorf("delete legs: %w", err)
	}

	logger.Info(ctx, "reversed ledger legs", "recorder_id", recorderID)
	return nil
}

// Balance returns the closing balance for a key: every leg kind through the
// end of asOf's business date.
func (s *Service) Balance(ctx context.Context, key stockkey.Key, asOf time.Time) (Balance, error) {
	return s.repo.FoldBalance(ctx, key, DayOf(asOf), ProfileClosing)
}

// BalanceGrid returns closing balances grouped by canonical key.
func (s *Service) BalanceGrid(ctx context.Context, filter GridFilter, asOf time.Time) ([]GridRow, error) {
	return s.repo.BalanceGrid(ctx, filter, DayOf(asOf))
}

// Available computes how many bags a deduction of the given kind may take
// from a key on a business date: the profile-bounded opening minus every
// same-date conversion-source deduction, posted or pending in the batch.
func (s *Service) Available(ctx context.Context, key stockkey.Key, date time.Time, consumer entity.LegKind, batch *BatchState) (int64, error) {
	profile, err := GateProfile(consumer)
	if err != nil {
		return 0, err
	}

	day := DayOf(date)

	opening, err := s.repo.FoldBalance(ctx, key, day, profile)
	if err != nil {
		return 0, fmt.Errorf("fold opening balance: %w", err)
	}

	posted, err := s.repo.SameDateSourceBags(ctx, key, day)
	if err != nil {
		return 0, fmt.Errorf("sum same-date sources: %w", err)
	}

	return opening.Bags - posted - batch.SameDateSources(key, day), nil
}

// CheckDeduction rejects a deduction that would drive the key's stock
// negative. The error carries requested/available/shortfall for the
// operator; nothing is partially fulfilled.
func (s *Service) CheckDeduction(ctx context.Context, key stockkey.Key, date time.Time, requestedBags int64, consumer entity.LegKind, batch *BatchState) error {
	if requestedBags <= 0 {
		return apperror.NewValidation("requested bags must be positive").
			WithDetail("requested", requestedBags)
	}

	available, err := s.Available(ctx, key, date, consumer, batch)
	if err != nil {
		return err
	}

	if requestedBags > available {
		return apperror.NewInsufficientStock(requestedBags, available).
			WithDetail("location", key.LocationCode).
			WithDetail("variety", key.Variety).
			WithDetail("productType", key.ProductType).
			WithDetail("packaging", key.PackagingBrand+" "+key.PackagingKg)
	}

	return nil
}

// LegsByRecorder returns the legs a movement produced.
func (s *Service) LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error) {
	return s.repo.LegsByRecorder(ctx, recorderID)
}

// ListLegs returns raw ledger legs for the audit view.
func (s *Service) ListLegs(ctx context.Context, filter LegFilter) ([]entity.StockLeg, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListLegs(ctx, filter)
}

// OrphanLegs returns legs whose recorder document no longer exists.
func (s *Service) OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.OrphanLegs(ctx, limit)
}
