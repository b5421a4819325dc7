// Package location provides the Location catalog: the physical places stock
// sits in - the mill floor, numbered godowns, kunchinittu heaps.
// Location codes are canonical (uppercased, whitespace-collapsed); the code
// is the location slot of the stock key.
package location

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/stockkey"
)

// Kind defines the type of location.
type Kind string

const (
	KindMill        Kind = "mill"
	KindGodown      Kind = "godown"
	KindKunchinittu Kind = "kunchinittu"
)

// Location represents a storage place for bags.
type Location struct {
	entity.Catalog

	// Kind defines the location category
	Kind Kind `db:"kind" json:"kind"`

	// IsActive indicates if the location accepts new movements
	IsActive bool `db:"is_active" json:"isActive"`

	// Description
	Description *string `db:"description" json:"description,omitempty"`
}

// NewLocation creates a new Location with required fields.
// The code is canonicalized.
func NewLocation(code, name string, kind Kind) *Location {
	return &Location{
		Catalog:  entity.NewCatalog(stockkey.NormalizeLocation(code), name),
		Kind:     kind,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}

	if !isValidKind(l.Kind) {
		return apperror.NewValidation("invalid location kind").
			WithDetail("field", "kind").
			WithDetail("value", string(l.Kind))
	}

	if l.Code != "" && l.Code != stockkey.NormalizeLocation(l.Code) {
		return apperror.NewValidation("location code must be canonical").
			WithDetail("field", "code").
			WithDetail("value", l.Code).
			WithDetail("canonical", stockkey.NormalizeLocation(l.Code))
	}

	return nil
}

// CanAcceptStock returns true if the location can receive bags.
func (l *Location) CanAcceptStock() bool {
	return l.IsActive && !l.DeletionMark
}

func isValidKind(k Kind) bool {
	switch k {
	case KindMill, KindGodown, KindKunchinittu:
		return true
	}
	return false
}
