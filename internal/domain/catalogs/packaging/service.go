package packaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/numerator"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
)

// Service provides business logic for the Packaging catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Packaging]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new Packaging service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	gen numerator.Generator,
) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Packaging]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "packaging",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      gen,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.checkFrozenOnceReferenced)

	return svc
}

// prepareForCreate normalizes the brand and generates a code if blank.
func (s *Service) prepareForCreate(ctx context.Context, p *Packaging) error {
	p.Brand = stockkey.NormalizeBrand(p.Brand)

	if p.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("PKG"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		p.Code = code
	}

	// One row per (brand, weight)
	existing, err := s.repo.FindByBrandAndKg(ctx, p.Brand, p.KeyKg())
	if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("check duplicate packaging: %w", err)
	}
	if err == nil && existing != nil {
		return apperror.NewDuplicate("packaging", "brand+kg", p.Brand+" "+p.KeyKg())
	}

	return nil
}

// checkFrozenOnceReferenced rejects brand and weight edits once movements
// reference the row. Both fields identify a stock key slot; the display
// name stays editable.
func (s *Service) checkFrozenOnceReferenced(ctx context.Context, p *Packaging) error {
	p.Brand = stockkey.NormalizeBrand(p.Brand)

	stored, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("load stored packaging: %w", err)
	}
	if stored.Brand == p.Brand && stored.KgPerBag == p.KgPerBag {
		return nil
	}

	referenced, err := s.repo.IsReferenced(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("check packaging references: %w", err)
	}
	if referenced {
		return apperror.NewBusinessRule(
			apperror.CodePackagingFrozen,
			"Packaging brand and weight are frozen: movements already reference it",
		).WithDetail("id", p.ID.String()).
			WithDetail("stored", stored.Brand+" "+stored.KgPerBag.String()).
			WithDetail("requested", p.Brand+" "+p.KgPerBag.String())
	}

	return nil
}

// Resolve finds a packaging by raw brand text and an optional weight.
// Inputs are normalized the same way movement ingestion normalizes them.
// A blank weight resolves by brand alone; that needs the brand to carry
// exactly one registered weight.
func (s *Service) Resolve(ctx context.Context, brand string, kg string) (*Packaging, error) {
	canonical := stockkey.NormalizeBrand(brand)

	if raw := strings.TrimSpace(kg); raw != "" {
		q, err := types.ParseQuantity(raw)
		if err != nil {
			return nil, apperror.NewValidation("invalid packaging weight").
				WithDetail("value", kg).WithCause(err)
		}

		p, err := s.repo.FindByBrandAndKg(ctx, canonical, stockkey.FormatKg(q))
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewNotFound("packaging", canonical+" "+raw)
			}
			return nil, err
		}
		return p, nil
	}

	rows, err := s.repo.ListByBrand(ctx, canonical)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, apperror.NewNotFound("packaging", canonical)
	case 1:
		return rows[0], nil
	default:
		weights := make([]string, len(rows))
		for i, p := range rows {
			weights[i] = p.KeyKg()
		}
		return nil, apperror.NewValidation("packaging weight required, brand has several").
			WithDetail("brand", canonical).
			WithDetail("weights", strings.Join(weights, ", "))
	}
}
