package hamali

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/numerator"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/pkg/logger"
)

// numberPrefix for generated entry numbers.
const numberPrefix = "HAM"

// defaultBackfillLimit bounds one backfill pass.
const defaultBackfillLimit = 500

// RateResolver picks the tariff band covering a weight for a work type.
type RateResolver interface {
	ResolveRate(ctx context.Context, workType string, weightKg types.Quantity) (*hamalirate.HamaliRate, error)
}

// Service provides business logic for hamali entries.
type Service struct {
	repo      Repository
	rates     RateResolver
	numerator numerator.Generator
	txManager tx.Manager
}

// NewService creates a new hamali entry service.
func NewService(repo Repository, rates RateResolver, gen numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		rates:     rates,
		numerator: gen,
		txManager: txManager,
	}
}

// CreateInput carries one charge to record.
type CreateInput struct {
	MovementID  *id.ID
	WorkType    string
	Date        time.Time
	Bags        int64
	NetWeightKg types.Quantity
	Comment     string
}

// CreateEntry resolves the tariff band, computes the charge and stores the
// entry with rate and amount frozen.
func (s *Service) CreateEntry(ctx context.Context, in CreateInput) (*HamaliEntry, error) {
	e := NewHamaliEntry(in.WorkType, in.Date, in.Bags, in.NetWeightKg)
	e.MovementID = in.MovementID
	e.Comment = strings.TrimSpace(in.Comment)

	if user := appctx.GetUserID(ctx); user != "" {
		e.CreatedBy = user
		e.UpdatedBy = user
	}

	if err := e.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		band, err := s.rates.ResolveRate(ctx, e.WorkType, e.NetWeightKg)
		if err != nil {
			return err
		}

		if err := e.SetCharge(band, Calculate(band, e.Bags, e.NetWeightKg)); err != nil {
			return err
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numberPrefix), nil, e.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		e.Number = number

		return s.repo.Create(ctx, e)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "hamali entry created",
		"number", e.Number,
		"work_type", e.WorkType,
		"rate_code", e.RateCode,
		"amount", e.Amount.String(),
	)

	return e, nil
}

// GetByID retrieves an entry.
func (s *Service) GetByID(ctx context.Context, entryID id.ID) (*HamaliEntry, error) {
	return s.repo.GetByID(ctx, entryID)
}

// GetByNumber retrieves an entry by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*HamaliEntry, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List retrieves entries with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*HamaliEntry], error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Inconsistency is one row the backfill refused to price.
type Inconsistency struct {
	EntryID id.ID  `json:"entryId"`
	Number  string `json:"number"`
	Reason  string `json:"reason"`
}

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Scanned int             `json:"scanned"`
	Updated int             `json:"updated"`
	Skipped []Inconsistency `json:"skipped,omitempty"`
}

// BackfillAmounts prices entries whose amount is still null. Only null rows
// are touched, so a second pass over the same data is a no-op. Rows that
// cannot be priced from their own snapshot are reported, never guessed.
func (s *Service) BackfillAmounts(ctx context.Context, limit int) (BackfillResult, error) {
	if limit <= 0 {
		limit = defaultBackfillLimit
	}

	var result BackfillResult

	entries, err := s.repo.ListUnpriced(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list unpriced entries: %w", err)
	}
	result.Scanned = len(entries)

	for _, e := range entries {
		if e.Bags <= 0 || !e.NetWeightKg.IsPositive() {
			result.Skipped = append(result.Skipped, Inconsistency{
				EntryID: e.ID,
				Number:  e.Number,
				Reason:  "missing bags or weight snapshot",
			})
			continue
		}

		band, err := s.rates.ResolveRate(ctx, e.WorkType, e.NetWeightKg)
		if err != nil {
			if apperror.IsNotFound(err) {
				result.Skipped = append(result.Skipped, Inconsistency{
					EntryID: e.ID,
					Number:  e.Number,
					Reason:  fmt.Sprintf("no tariff band covers %s kg for %q", e.NetWeightKg.String(), e.WorkType),
				})
				continue
			}
			return result, fmt.Errorf("resolve rate for %s: %w", e.Number, err)
		}

		charge := Calculate(band, e.Bags, e.NetWeightKg)
		raw, err := json.Marshal(charge)
		if err != nil {
			return result, fmt.Errorf("marshal breakdown for %s: %w", e.Number, err)
		}

		updated, err := s.repo.PriceEntry(ctx, e.ID, band.Code, band.RateType, band.BaseRate, charge.Total, raw)
		if err != nil {
			return result, fmt.Errorf("price entry %s: %w", e.Number, err)
		}
		if updated {
			result.Updated++
		}
	}

	logger.Info(ctx, "hamali backfill pass finished",
		"scanned", result.Scanned,
		"updated", result.Updated,
		"skipped", len(result.Skipped),
	)

	return result, nil
}
