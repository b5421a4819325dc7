package location

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/numerator"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/tx"
	"millstock/internal/domain"
)

// Service provides business logic for the Location catalog.
type Service struct {
	*domain.CatalogService[*Location]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new Location service.
func NewService(
	repo Repository,
	txManager tx.Manager,
	gen numerator.Generator,
) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Location]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "location",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      gen,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)
	base.Hooks().On(domain.BeforeUpdate, svc.normalizeCode)

	return svc
}

// prepareForCreate canonicalizes the code or generates one if blank.
func (s *Service) prepareForCreate(ctx context.Context, l *Location) error {
	if l.Code == "" {
		code, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("LOC"), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		l.Code = code
	}
	l.Code = stockkey.NormalizeLocation(l.Code)

	exists, err := s.repo.ExistsByCode(ctx, l.Code)
	if err != nil {
		return fmt.Errorf("check duplicate location: %w", err)
	}
	if exists {
		return apperror.NewDuplicate("location", "code", l.Code)
	}

	return nil
}

func (s *Service) normalizeCode(ctx context.Context, l *Location) error {
	l.Code = stockkey.NormalizeLocation(l.Code)
	return nil
}

// Resolve finds a location by raw code text, normalizing first.
func (s *Service) Resolve(ctx context.Context, code string) (*Location, error) {
	canonical := stockkey.NormalizeLocation(code)
	if canonical == "" {
		return nil, apperror.NewValidation("location code is required")
	}
	return s.GetByCode(ctx, canonical)
}
