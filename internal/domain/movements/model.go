// Package movements provides the stock movement document: one append-only
// record per business event (production, purchase, sale, palti). Movements
// never mutate balances directly; a fully approved movement posts ledger
// legs and every balance is derived from those.
package movements

import (
	"context"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
)

// MovementType identifies the business event a movement records.
type MovementType string

const (
	TypeProduction MovementType = "production"
	TypePurchase   MovementType = "purchase"
	TypeSale       MovementType = "sale"
	TypePalti      MovementType = "palti"
)

// Valid reports whether the type is one of the known values.
func (t MovementType) Valid() bool {
	switch t {
	case TypeProduction, TypePurchase, TypeSale, TypePalti:
		return true
	}
	return false
}

// IsConversion reports whether the type repackages stock (two ledger legs).
func (t MovementType) IsConversion() bool {
	return t == TypePalti
}

// LegKind maps a single-leg type to its ledger kind.
// ok is false for palti, which writes a source and a target leg.
func (t MovementType) LegKind() (entity.LegKind, bool) {
	switch t {
	case TypeProduction:
		return entity.LegKindProduction, true
	case TypePurchase:
		return entity.LegKindPurchase, true
	case TypeSale:
		return entity.LegKindSale, true
	}
	return "", false
}

// NumberPrefix returns the document number prefix for the type.
func (t MovementType) NumberPrefix() string {
	switch t {
	case TypeProduction:
		return "PRD"
	case TypePurchase:
		return "PUR"
	case TypeSale:
		return "SAL"
	case TypePalti:
		return "PAL"
	}
	return "MOV"
}

// MovementStatus represents the approval state of a movement.
type MovementStatus string

const (
	StatusPending  MovementStatus = "pending"
	StatusApproved MovementStatus = "approved"
	StatusRejected MovementStatus = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s MovementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Movement is a stock movement document. All stock dimensions are stored in
// canonical form; packaging weights are snapshots taken at creation so later
// catalog edits never change history.
//
// Single-leg movements (production, purchase, sale) fill the Packaging*
// fields. A palti leaves them nil and fills the Source*/Target* pairs; for
// palti, Bags is the target bag count and Quintals the source weight.
type Movement struct {
	entity.Document

	Type   MovementType   `db:"type" json:"type"`
	Status MovementStatus `db:"status" json:"status"`

	BillNumber string `db:"bill_number" json:"billNumber,omitempty"`

	// Canonical stock dimensions
	LocationCode string `db:"location_code" json:"locationCode"`
	Variety      string `db:"variety" json:"variety"`
	ProductType  string `db:"product_type" json:"productType"`

	// Packaging snapshot for single-leg movements
	PackagingID    *id.ID          `db:"packaging_id" json:"packagingId,omitempty"`
	PackagingBrand *string         `db:"packaging_brand" json:"packagingBrand,omitempty"`
	PackagingKg    *types.Quantity `db:"packaging_kg" json:"packagingKg,omitempty"`

	Bags     int64          `db:"bags" json:"bags"`
	Quintals types.Quantity `db:"quintals" json:"quintals"`

	// Optional palti location overrides; empty means LocationCode on both sides
	FromLocation *string `db:"from_location" json:"fromLocation,omitempty"`
	ToLocation   *string `db:"to_location" json:"toLocation,omitempty"`

	// Palti source snapshot
	SourcePackagingID    *id.ID          `db:"source_packaging_id" json:"sourcePackagingId,omitempty"`
	SourcePackagingBrand *string         `db:"source_packaging_brand" json:"sourcePackagingBrand,omitempty"`
	SourcePackagingKg    *types.Quantity `db:"source_packaging_kg" json:"sourcePackagingKg,omitempty"`
	SourceBags           *int64          `db:"source_bags" json:"sourceBags,omitempty"`

	// Palti target snapshot
	TargetPackagingID    *id.ID          `db:"target_packaging_id" json:"targetPackagingId,omitempty"`
	TargetPackagingBrand *string         `db:"target_packaging_brand" json:"targetPackagingBrand,omitempty"`
	TargetPackagingKg    *types.Quantity `db:"target_packaging_kg" json:"targetPackagingKg,omitempty"`

	// Conversion shortage, frozen at creation
	ShortageKg   types.Quantity `db:"shortage_kg" json:"shortageKg"`
	ShortageBags int64          `db:"shortage_bags" json:"shortageBags"`

	// Approval trail. RequiresAdminApproval is a policy snapshot taken at
	// creation; later policy changes never reclassify existing movements.
	RequiresAdminApproval bool       `db:"requires_admin_approval" json:"requiresAdminApproval"`
	ApprovedBy            *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt            *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	AdminApprovedBy       *string    `db:"admin_approved_by" json:"adminApprovedBy,omitempty"`
	AdminApprovedAt       *time.Time `db:"admin_approved_at" json:"adminApprovedAt,omitempty"`
	RejectedBy            *string    `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt            *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectReason          *string    `db:"reject_reason" json:"rejectReason,omitempty"`
}

// NewMovement creates a pending movement dated to the given business day.
func NewMovement(t MovementType, date time.Time) *Movement {
	m := &Movement{
		Document: entity.NewDocument(),
		Type:     t,
		Status:   StatusPending,
	}
	m.Date = stockledger.DayOf(date)
	return m
}

// Approve records the first-tier sign-off.
func (m *Movement) Approve(by string) error {
	if m.Status != StatusPending {
		return apperror.NewBusinessRule("INVALID_STATUS", "Can only approve a pending movement")
	}
	now := time.Now().UTC()
	m.Status = StatusApproved
	m.ApprovedBy = &by
	m.ApprovedAt = &now
	return nil
}

// AdminApprove records the second-tier sign-off for escalated movements.
func (m *Movement) AdminApprove(by string) error {
	if m.Status != StatusApproved {
		return apperror.NewBusinessRule("INVALID_STATUS", "Admin approval requires an approved movement")
	}
	if !m.RequiresAdminApproval {
		return apperror.NewBusinessRule("ADMIN_APPROVAL_NOT_REQUIRED", "Movement does not require admin approval")
	}
	if m.AdminApprovedBy != nil {
		return apperror.NewBusinessRule("ALREADY_APPROVED", "Movement already has admin approval")
	}
	now := time.Now().UTC()
	m.AdminApprovedBy = &by
	m.AdminApprovedAt = &now
	return nil
}

// Reject declines a movement at any point before it counts toward balances.
func (m *Movement) Reject(by, reason string) error {
	if m.Status == StatusRejected {
		return apperror.NewBusinessRule("INVALID_STATUS", "Movement is already rejected")
	}
	if m.Countable() {
		return apperror.NewBusinessRule("MOVEMENT_COUNTABLE", "Cannot reject a movement that already counts toward balances")
	}
	now := time.Now().UTC()
	m.Status = StatusRejected
	m.RejectedBy = &by
	m.RejectedAt = &now
	if reason != "" {
		m.RejectReason = &reason
	}
	return nil
}

// Countable reports whether the movement contributes to balances: approved,
// and admin-approved when the policy snapshot demands it.
func (m *Movement) Countable() bool {
	if m.Status != StatusApproved {
		return false
	}
	return !m.RequiresAdminApproval || m.AdminApprovedBy != nil
}

// Key returns the stock key of a single-leg movement.
func (m *Movement) Key() stockkey.Key {
	var brand string
	var kg types.Quantity
	if m.PackagingBrand != nil {
		brand = *m.PackagingBrand
	}
	if m.PackagingKg != nil {
		kg = *m.PackagingKg
	}
	return stockkey.New(m.LocationCode, m.Variety, m.ProductType, brand, kg)
}

// SourceKey returns the key a palti debits.
func (m *Movement) SourceKey() stockkey.Key {
	loc := m.LocationCode
	if m.FromLocation != nil && *m.FromLocation != "" {
		loc = *m.FromLocation
	}
	var brand string
	var kg types.Quantity
	if m.SourcePackagingBrand != nil {
		brand = *m.SourcePackagingBrand
	}
	if m.SourcePackagingKg != nil {
		kg = *m.SourcePackagingKg
	}
	return stockkey.New(loc, m.Variety, m.ProductType, brand, kg)
}

// TargetKey returns the key a palti credits.
func (m *Movement) TargetKey() stockkey.Key {
	loc := m.LocationCode
	if m.ToLocation != nil && *m.ToLocation != "" {
		loc = *m.ToLocation
	}
	var brand string
	var kg types.Quantity
	if m.TargetPackagingBrand != nil {
		brand = *m.TargetPackagingBrand
	}
	if m.TargetPackagingKg != nil {
		kg = *m.TargetPackagingKg
	}
	return stockkey.New(loc, m.Variety, m.ProductType, brand, kg)
}

// AffectedKeys returns every stock key the movement touches when posted.
// Used for advisory locking and cache invalidation.
func (m *Movement) AffectedKeys() []stockkey.Key {
	if m.Type.IsConversion() {
		return []stockkey.Key{m.SourceKey(), m.TargetKey()}
	}
	return []stockkey.Key{m.Key()}
}

// Deduction describes what a movement subtracts from stock.
type Deduction struct {
	Key  stockkey.Key
	Kind entity.LegKind
	Bags int64
}

// Deduction returns the stock deduction this movement makes.
// ok is false for receipt-only movements (production, purchase).
func (m *Movement) Deduction() (Deduction, bool) {
	switch m.Type {
	case TypeSale:
		return Deduction{Key: m.Key(), Kind: entity.LegKindSale, Bags: m.Bags}, true
	case TypePalti:
		var bags int64
		if m.SourceBags != nil {
			bags = *m.SourceBags
		}
		return Deduction{Key: m.SourceKey(), Kind: entity.LegKindConversionSource, Bags: bags}, true
	}
	return Deduction{}, false
}

// Validate implements entity.Validatable.
func (m *Movement) Validate(ctx context.Context) error {
	if err := m.Document.Validate(ctx); err != nil {
		return err
	}

	if !m.Type.Valid() {
		return apperror.NewValidation("unknown movement type").
			WithDetail("field", "type").
			WithDetail("value", string(m.Type))
	}
	if !m.Status.Valid() {
		return apperror.NewValidation("unknown movement status").
			WithDetail("field", "status").
			WithDetail("value", string(m.Status))
	}
	if m.LocationCode == "" {
		return apperror.NewValidation("location is required").
			WithDetail("field", "locationCode")
	}
	if m.Variety == "" {
		return apperror.NewValidation("variety is required").
			WithDetail("field", "variety")
	}
	if m.ProductType == "" {
		return apperror.NewValidation("product type is required").
			WithDetail("field", "productType")
	}
	if m.Bags <= 0 {
		return apperror.NewValidation("bags must be positive").
			WithDetail("field", "bags")
	}
	if !m.Quintals.IsPositive() {
		return apperror.NewValidation("quintals must be positive").
			WithDetail("field", "quintals")
	}

	if m.Type.IsConversion() {
		return m.validateConversion()
	}
	return m.validateSingleLeg()
}

func (m *Movement) validateSingleLeg() error {
	if m.PackagingID == nil || m.PackagingBrand == nil || m.PackagingKg == nil {
		return apperror.NewValidation("packaging snapshot is required").
			WithDetail("field", "packaging")
	}
	if !m.PackagingKg.IsPositive() {
		return apperror.NewValidation("packaging weight must be positive").
			WithDetail("field", "packagingKg")
	}
	return nil
}

func (m *Movement) validateConversion() error {
	if m.SourcePackagingID == nil || m.SourcePackagingBrand == nil || m.SourcePackagingKg == nil {
		return apperror.NewValidation("source packaging snapshot is required").
			WithDetail("field", "sourcePackaging")
	}
	if m.TargetPackagingID == nil || m.TargetPackagingBrand == nil || m.TargetPackagingKg == nil {
		return apperror.NewValidation("target packaging snapshot is required").
			WithDetail("field", "targetPackaging")
	}
	if !m.SourcePackagingKg.IsPositive() {
		return apperror.NewValidation("source packaging weight must be positive").
			WithDetail("field", "sourcePackagingKg")
	}
	if !m.TargetPackagingKg.IsPositive() {
		return apperror.NewValidation("target packaging weight must be positive").
			WithDetail("field", "targetPackagingKg")
	}
	if m.SourceBags == nil || *m.SourceBags <= 0 {
		return apperror.NewValidation("source bags must be positive").
			WithDetail("field", "sourceBags")
	}
	if m.ShortageKg.IsNegative() {
		return apperror.NewValidation("shortage cannot be negative").
			WithDetail("field", "shortageKg")
	}
	return nil
}

// --- Postable interface implementation ---
// GetID, GetPostedVersion, IsPosted, MarkPosted, MarkUnposted are inherited
// from entity.Document.

func (m *Movement) GetDocumentType() string { return "StockMovement" }

// CanPost allows posting only once the approval chain is complete.
func (m *Movement) CanPost(ctx context.Context) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	if !m.Countable() {
		return apperror.NewBusinessRule(
			"MOVEMENT_NOT_COUNTABLE",
			"Movement must be fully approved before posting",
		)
	}
	return nil
}

// GenerateLegs turns the document snapshot into ledger legs.
// Single-leg movements carry the document weight (measured, for purchases);
// palti legs carry bag-derived weights so source and target stay consistent
// with their bag counts, the shortage being the difference.
func (m *Movement) GenerateLegs(ctx context.Context) (*posting.LegSet, error) {
	set := posting.NewLegSet()
	version := m.PostedVersion + 1

	if m.Type.IsConversion() {
		if m.SourceBags == nil || m.SourcePackagingKg == nil || m.TargetPackagingKg == nil {
			return nil, apperror.NewValidation("conversion snapshot is incomplete")
		}
		set.AddStock(entity.NewStockLeg(
			m.ID, version, m.Date,
			entity.LegKindConversionSource, m.SourceKey(),
			*m.SourceBags, m.SourcePackagingKg.MulInt(*m.SourceBags),
		))
		set.AddStock(entity.NewStockLeg(
			m.ID, version, m.Date,
			entity.LegKindConversionTarget, m.TargetKey(),
			m.Bags, m.TargetPackagingKg.MulInt(m.Bags),
		))
		return set, nil
	}

	kind, ok := m.Type.LegKind()
	if !ok {
		return nil, apperror.NewValidation("movement type has no ledger mapping").
			WithDetail("type", string(m.Type))
	}
	set.AddStock(entity.NewStockLeg(
		m.ID, version, m.Date,
		kind, m.Key(),
		m.Bags, types.QuintalsToKg(m.Quintals),
	))
	return set, nil
}

var _ posting.Postable = (*Movement)(nil)
