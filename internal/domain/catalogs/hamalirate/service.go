package hamalirate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/numerator"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
)

// Service provides business logic for the hamali rate master.
type Service struct {
	*domain.CatalogService[*HamaliRate]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new HamaliRate service.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*HamaliRate]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "hamali rate",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      gen,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.normalize)

	return svc
}

func (s *Service) normalize(ctx context.Context, r *HamaliRate) error {
	r.WorkType = strings.ToLower(strings.TrimSpace(r.WorkType))
	r.RateType = strings.ToUpper(strings.TrimSpace(r.RateType))
	return nil
}

// prepareForCreate normalizes, generates a code if blank, and rejects
// overlapping bands for the same work type.
func (s *Service) prepareForCreate(ctx context.Context, r *HamaliRate) error {
	if err := s.normalize(ctx, r); err != nil {
		return err
	}

	if r.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("HRT"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		r.Code = code
	}

	bands, err := s.repo.ListByWorkType(ctx, r.WorkType)
	if err != nil {
		return fmt.Errorf("check rate bands: %w", err)
	}
	for _, b := range bands {
		if bandsOverlap(r, b) {
			return apperror.NewBusinessRule(
				apperror.CodeRateBandOverlap,
				"Weight band overlaps an existing tariff for this work type",
			).WithDetail("workType", r.WorkType).
				WithDetail("existing", b.Code).
				WithDetail("existingMin", b.MinWeightKg.String()).
				WithDetail("existingMax", b.MaxWeightKg.String())
		}
	}

	return nil
}

// bandsOverlap reports whether two inclusive [min, max] bands intersect.
// A zero max is open-ended.
func bandsOverlap(a, b *HamaliRate) bool {
	aOpen := a.MaxWeightKg.IsZero()
	bOpen := b.MaxWeightKg.IsZero()

	if aOpen && bOpen {
		return true
	}
	if aOpen {
		return b.MaxWeightKg >= a.MinWeightKg
	}
	if bOpen {
		return a.MaxWeightKg >= b.MinWeightKg
	}
	return a.MinWeightKg <= b.MaxWeightKg && b.MinWeightKg <= a.MaxWeightKg
}

// ResolveRate picks the tariff band covering weightKg for a work type.
func (s *Service) ResolveRate(ctx context.Context, workType string, weightKg types.Quantity) (*HamaliRate, error) {
	wt := strings.ToLower(strings.TrimSpace(workType))
	if wt == "" {
		return nil, apperror.NewValidation("work type is required").
			WithDetail("field", "workType")
	}
	if weightKg.IsNegative() {
		return nil, apperror.NewValidation("weight must not be negative").
			WithDetail("field", "weightKg").
			WithDetail("value", weightKg.String())
	}

	rate, err := s.repo.FindRate(ctx, wt, weightKg)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("hamali rate", fmt.Sprintf("%s @ %s kg", wt, weightKg.String()))
		}
		return nil, err
	}
	return rate, nil
}
