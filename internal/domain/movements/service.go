package movements

import (
	"context"
	"fmt"
	"strings"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/events"
	"millstock/internal/core/id"
	"millstock/internal/core/numerator"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/approval"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
	"millstock/pkg/logger"
)

// aggregateType names movement events in the outbox.
const aggregateType = "StockMovement"

// PackagingResolver resolves raw brand and weight text into a catalog row.
type PackagingResolver interface {
	Resolve(ctx context.Context, brand string, kg string) (*packaging.Packaging, error)
}

// LocationResolver resolves raw location text into a catalog row.
type LocationResolver interface {
	Resolve(ctx context.Context, code string) (*location.Location, error)
}

// AdminTierPolicy decides whether a movement needs admin counter-sign.
type AdminTierPolicy interface {
	RequiresAdminTier(ctx context.Context, in approval.Input) (bool, error)
}

// Service provides business operations for stock movements: batch creation
// with the availability gate, the two-tier approval flow, and posting.
type Service struct {
	repo          Repository
	packagings    PackagingResolver
	locations     LocationResolver
	ledger        *stockledger.Service
	postingEngine *posting.Engine
	policy        AdminTierPolicy
	numerator     numerator.Generator
	txManager     tx.Manager
	locker        tx.KeyLocker
	events        events.Publisher
}

// NewService creates a new movements service.
func NewService(
	repo Repository,
	packagings PackagingResolver,
	locations LocationResolver,
	ledger *stockledger.Service,
	postingEngine *posting.Engine,
	policy AdminTierPolicy,
	gen numerator.Generator,
	txManager tx.Manager,
	locker tx.KeyLocker,
	eventsPub events.Publisher,
) *Service {
	return &Service{
		repo:          repo,
		packagings:    packagings,
		locations:     locations,
		ledger:        ledger,
		postingEngine: postingEngine,
		policy:        policy,
		numerator:     gen,
		txManager:     txManager,
		locker:        locker,
		events:        eventsPub,
	}
}

// Create records a single movement. Equivalent to a one-element batch.
func (s *Service) Create(ctx context.Context, p Proposal) (*Movement, error) {
	ms, err := s.CreateBatch(ctx, []Proposal{p})
	if err != nil {
		return nil, err
	}
	return ms[0], nil
}

// CreateBatch validates and persists a batch of movements atomically.
// Deducting entries are gated against stock available on their date, with
// earlier palti sources in the same batch already counted as consumed; any
// failure drops the whole batch.
func (s *Service) CreateBatch(ctx context.Context, proposals []Proposal) ([]*Movement, error) {
	if len(proposals) == 0 {
		return nil, apperror.NewValidation("batch is empty")
	}

	var created []*Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batch := stockledger.NewBatchState()
		ms := make([]*Movement, 0, len(proposals))
		evs := make([]events.Event, 0, len(proposals))

		for i, p := range proposals {
			m, err := s.buildMovement(ctx, p)
			if err != nil {
				return batchItemError(err, i)
			}

			if err := s.snapshotApprovalPolicy(ctx, m); err != nil {
				return batchItemError(err, i)
			}
			if err := m.Validate(ctx); err != nil {
				return batchItemError(err, i)
			}

			number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(m.Type.NumberPrefix()), nil, m.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			m.Number = number

			if ded, ok := m.Deduction(); ok {
				if err := s.ledger.CheckDeduction(ctx, ded.Key, m.Date, ded.Bags, ded.Kind, batch); err != nil {
					return batchItemError(err, i)
				}
				if m.Type.IsConversion() {
					batch.AddSource(ded.Key, m.Date, ded.Bags)
				}
			}

			ms = append(ms, m)
			evs = append(evs, movementEvent(m, "movement.created"))
		}

		if err := s.repo.CreateBatch(ctx, ms); err != nil {
			return fmt.Errorf("create movements: %w", err)
		}
		if err := s.events.PublishBatch(ctx, evs); err != nil {
			return fmt.Errorf("publish events: %w", err)
		}

		created = ms
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement batch created", "count", len(created))
	return created, nil
}

// Approve records the first-tier sign-off. The movement posts immediately
// unless its policy snapshot demands an admin counter-sign; the gate re-runs
// under key locks before any legs are written.
func (s *Service) Approve(ctx context.Context, movementID id.ID) (*Movement, error) {
	by := appctx.GetUserID(ctx)
	if by == "" {
		return nil, apperror.NewUnauthorized("operator identity required")
	}

	var m *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if err := m.Approve(by); err != nil {
			return err
		}

		if m.Countable() {
			if err := s.post(ctx, m); err != nil {
				return err
			}
		} else if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}

		return s.events.Publish(ctx, movementEvent(m, "movement.approved"))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement approved",
		"id", m.ID, "number", m.Number, "countable", m.Countable())
	return m, nil
}

// AdminApprove records the second-tier sign-off and posts the movement.
func (s *Service) AdminApprove(ctx context.Context, movementID id.ID) (*Movement, error) {
	if !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("admin role required")
	}
	by := appctx.GetUserID(ctx)
	if by == "" {
		return nil, apperror.NewUnauthorized("operator identity required")
	}

	var m *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if err := m.AdminApprove(by); err != nil {
			return err
		}

		if err := s.post(ctx, m); err != nil {
			return err
		}

		return s.events.Publish(ctx, movementEvent(m, "movement.admin_approved"))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement admin approved", "id", m.ID, "number", m.Number)
	return m, nil
}

// Reject declines a movement before it counts. The audit row remains.
func (s *Service) Reject(ctx context.Context, movementID id.ID, reason string) (*Movement, error) {
	by := appctx.GetUserID(ctx)
	if by == "" {
		return nil, apperror.NewUnauthorized("operator identity required")
	}

	var m *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if err := m.Reject(by, reason); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}
		return s.events.Publish(ctx, movementEvent(m, "movement.rejected"))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement rejected", "id", m.ID, "number", m.Number)
	return m, nil
}

// GetByID retrieves a movement.
func (s *Service) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	return s.repo.GetByID(ctx, movementID)
}

// GetByNumber retrieves a movement by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Movement, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List retrieves movements with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a movement that never counted toward balances.
// Countable history is append-only; use Reject to void an approved row.
func (s *Service) Delete(ctx context.Context, movementID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.repo.GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if m.Posted || m.Countable() {
			return apperror.NewMovementPosted(m.ID.String())
		}
		if err := s.repo.Delete(ctx, movementID); err != nil {
			return err
		}
		return s.events.Publish(ctx, movementEvent(m, "movement.deleted"))
	})
}

// post locks the affected keys, re-runs the availability gate against
// current countable stock, and writes the ledger legs. Runs inside the
// caller's transaction; the advisory locks are released with it.
func (s *Service) post(ctx context.Context, m *Movement) error {
	keys := m.AffectedKeys()
	tokens := make([]int64, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, k.LockToken())
	}
	if err := s.locker.AcquireKeyLocks(ctx, tokens); err != nil {
		return fmt.Errorf("lock stock keys: %w", err)
	}

	if ded, ok := m.Deduction(); ok {
		if err := s.ledger.CheckDeduction(ctx, ded.Key, m.Date, ded.Bags, ded.Kind, nil); err != nil {
			return err
		}
	}

	err := s.postingEngine.Post(ctx, m, func(ctx context.Context) error {
		return s.repo.Update(ctx, m)
	})
	if err != nil {
		return err
	}

	return s.events.Publish(ctx, movementEvent(m, "movement.posted"))
}

// buildMovement turns a raw proposal into a validated document snapshot.
func (s *Service) buildMovement(ctx context.Context, p Proposal) (*Movement, error) {
	if !p.Type.Valid() {
		return nil, apperror.NewValidation("unknown movement type").
			WithDetail("field", "type").
			WithDetail("value", string(p.Type))
	}
	if p.Date.IsZero() {
		return nil, apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	m := NewMovement(p.Type, p.Date)
	m.BillNumber = strings.TrimSpace(p.BillNumber)
	m.Comment = strings.TrimSpace(p.Comment)
	m.CreatedBy = appctx.GetUserID(ctx)
	m.UpdatedBy = m.CreatedBy

	loc, err := s.resolveActiveLocation(ctx, p.Location)
	if err != nil {
		return nil, err
	}
	m.LocationCode = loc.Code
	m.Variety = stockkey.NormalizeVariety(p.Variety)
	m.ProductType = stockkey.NormalizeProductType(p.ProductType)

	if p.Type.IsConversion() {
		if err := s.fillConversion(ctx, m, p); err != nil {
			return nil, err
		}
	} else if err := s.fillSingleLeg(ctx, m, p); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) fillSingleLeg(ctx context.Context, m *Movement, p Proposal) error {
	pkg, err := s.packagings.Resolve(ctx, p.PackagingBrand, p.PackagingKg)
	if err != nil {
		return err
	}
	kg := pkg.KgPerBag
	m.PackagingID = &pkg.ID
	m.PackagingBrand = &pkg.Brand
	m.PackagingKg = &kg

	if p.Bags <= 0 {
		return apperror.NewValidation("bags must be positive").
			WithDetail("field", "bags")
	}
	m.Bags = p.Bags

	if raw := strings.TrimSpace(p.Quintals); raw != "" {
		q, err := types.ParseQuantity(raw)
		if err != nil {
			return apperror.NewValidation("invalid quintals").
				WithDetail("value", raw).WithCause(err)
		}
		m.Quintals = q
	} else {
		m.Quintals = types.KgToQuintals(kg.MulInt(m.Bags))
	}
	return nil
}

func (s *Service) fillConversion(ctx context.Context, m *Movement, p Proposal) error {
	src, err := s.packagings.Resolve(ctx, p.SourcePackagingBrand, p.SourcePackagingKg)
	if err != nil {
		return err
	}
	tgt, err := s.packagings.Resolve(ctx, p.TargetPackagingBrand, p.TargetPackagingKg)
	if err != nil {
		return err
	}

	if raw := strings.TrimSpace(p.FromLocation); raw != "" {
		loc, err := s.resolveActiveLocation(ctx, raw)
		if err != nil {
			return err
		}
		m.FromLocation = &loc.Code
	}
	if raw := strings.TrimSpace(p.ToLocation); raw != "" {
		loc, err := s.resolveActiveLocation(ctx, raw)
		if err != nil {
			return err
		}
		m.ToLocation = &loc.Code
	}

	srcKg := src.KgPerBag
	tgtKg := tgt.KgPerBag
	m.SourcePackagingID = &src.ID
	m.SourcePackagingBrand = &src.Brand
	m.SourcePackagingKg = &srcKg
	m.TargetPackagingID = &tgt.ID
	m.TargetPackagingBrand = &tgt.Brand
	m.TargetPackagingKg = &tgtKg

	if p.TargetBags <= 0 {
		return apperror.NewValidation("target bags must be positive").
			WithDetail("field", "targetBags")
	}
	m.Bags = p.TargetBags

	rawQuintals := strings.TrimSpace(p.Quintals)
	switch {
	case p.SourceBags > 0 && rawQuintals != "":
		q, err := types.ParseQuantity(rawQuintals)
		if err != nil {
			return apperror.NewValidation("invalid quintals").
				WithDetail("value", rawQuintals).WithCause(err)
		}
		sb := p.SourceBags
		m.SourceBags = &sb
		m.Quintals = q
	case p.SourceBags > 0:
		sb := p.SourceBags
		m.SourceBags = &sb
		m.Quintals = types.KgToQuintals(srcKg.MulInt(sb))
	case rawQuintals != "":
		q, err := types.ParseQuantity(rawQuintals)
		if err != nil {
			return apperror.NewValidation("invalid quintals").
				WithDetail("value", rawQuintals).WithCause(err)
		}
		sb, err := DeriveSourceBags(q, srcKg)
		if err != nil {
			return err
		}
		m.SourceBags = &sb
		m.Quintals = q
	default:
		return apperror.NewValidation("source bags or quintals required").
			WithDetail("field", "sourceBags")
	}

	result, err := Convert(srcKg, *m.SourceBags, tgtKg, m.Bags)
	if err != nil {
		return err
	}
	m.ShortageKg = result.ShortageKg
	m.ShortageBags = result.ShortageBags
	return nil
}

func (s *Service) resolveActiveLocation(ctx context.Context, raw string) (*location.Location, error) {
	loc, err := s.locations.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !loc.IsActive {
		return nil, apperror.NewBusinessRule("LOCATION_INACTIVE", "Location does not accept movements").
			WithDetail("location", loc.Code)
	}
	return loc, nil
}

// snapshotApprovalPolicy evaluates the admin-tier rule once and freezes the
// verdict on the document.
func (s *Service) snapshotApprovalPolicy(ctx context.Context, m *Movement) error {
	in := approval.Input{
		Type:        string(m.Type),
		Bags:        m.Bags,
		Location:    m.LocationCode,
		ProductType: m.ProductType,
		Quintals:    m.Quintals.Float64(),
	}
	if m.SourceBags != nil {
		in.SourceBags = *m.SourceBags
	}

	required, err := s.policy.RequiresAdminTier(ctx, in)
	if err != nil {
		return err
	}
	m.RequiresAdminApproval = required
	return nil
}

func movementEvent(m *Movement, eventType string) events.Event {
	return events.Event{
		AggregateType: aggregateType,
		AggregateID:   m.ID,
		Type:          eventType,
		Payload: map[string]any{
			"id":                    m.ID,
			"number":                m.Number,
			"type":                  m.Type,
			"status":                m.Status,
			"date":                  m.Date.Format("2006-01-02"),
			"location":              m.LocationCode,
			"variety":               m.Variety,
			"productType":           m.ProductType,
			"bags":                  m.Bags,
			"quintals":              m.Quintals,
			"requiresAdminApproval": m.RequiresAdminApproval,
		},
	}
}

func batchItemError(err error, idx int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("batchIndex", idx)
	}
	return fmt.Errorf("movement %d: %w", idx, err)
}
