// Package packaging provides the Packaging catalog: the bag types stock is
// stored and moved in. A packaging is a brand plus a nominal bag weight;
// the pair identifies one packaging row and one slot of the stock key.
//
// Movements snapshot the brand and bag weight at write time, so editing a
// packaging never rewrites history. Once any movement references a
// packaging, its brand and weight are frozen (enforced in the service).
package packaging

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
)

// Packaging represents one bag type (brand + nominal weight).
type Packaging struct {
	entity.Catalog

	// Brand is the canonical brand name (lowercased, whitespace-collapsed)
	Brand string `db:"brand" json:"brand"`

	// KgPerBag is the nominal bag weight
	KgPerBag types.Quantity `db:"kg_per_bag" json:"kgPerBag"`
}

// NewPackaging creates a new Packaging with required fields.
// The brand is normalized; lookups are case- and whitespace-insensitive.
func NewPackaging(code, name, brand string, kgPerBag types.Quantity) *Packaging {
	return &Packaging{
		Catalog:  entity.NewCatalog(code, name),
		Brand:    stockkey.NormalizeBrand(brand),
		KgPerBag: kgPerBag,
	}
}

// Validate implements entity.Validatable interface.
func (p *Packaging) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	if p.Brand == "" {
		return apperror.NewValidation("brand is required").
			WithDetail("field", "brand")
	}

	if p.Brand != stockkey.NormalizeBrand(p.Brand) {
		return apperror.NewValidation("brand must be canonical").
			WithDetail("field", "brand").
			WithDetail("value", p.Brand).
			WithDetail("canonical", stockkey.NormalizeBrand(p.Brand))
	}

	if !p.KgPerBag.IsPositive() {
		return apperror.NewValidation("kg per bag must be positive").
			WithDetail("field", "kgPerBag").
			WithDetail("value", p.KgPerBag.String())
	}

	return nil
}

// KeyKg returns the bag weight in the fixed 2-decimal key rendering.
func (p *Packaging) KeyKg() string {
	return stockkey.FormatKg(p.KgPerBag)
}
