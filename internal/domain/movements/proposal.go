package movements

import "time"

// Proposal is the raw input for one movement, as users type it. Free-text
// dimensions and weights stay strings here; the service normalizes them,
// resolves catalog rows, and snapshots weights into the document.
type Proposal struct {
	Type MovementType `json:"type"`
	Date time.Time    `json:"date"`

	BillNumber string `json:"billNumber,omitempty"`
	Comment    string `json:"comment,omitempty"`

	Location    string `json:"location"`
	Variety     string `json:"variety"`
	ProductType string `json:"productType"`

	// Single-leg fields (production, purchase, sale)
	PackagingBrand string `json:"packagingBrand,omitempty"`
	PackagingKg    string `json:"packagingKg,omitempty"`
	Bags           int64  `json:"bags,omitempty"`

	// Quintals is optional. Single-leg: a measured weight overriding the
	// bags x packaging derivation. Palti: the source weight, used to derive
	// SourceBags when those are omitted.
	Quintals string `json:"quintals,omitempty"`

	// Palti fields
	FromLocation         string `json:"fromLocation,omitempty"`
	ToLocation           string `json:"toLocation,omitempty"`
	SourcePackagingBrand string `json:"sourcePackagingBrand,omitempty"`
	SourcePackagingKg    string `json:"sourcePackagingKg,omitempty"`
	SourceBags           int64  `json:"sourceBags,omitempty"`
	TargetPackagingBrand string `json:"targetPackagingBrand,omitempty"`
	TargetPackagingKg    string `json:"targetPackagingKg,omitempty"`
	TargetBags           int64  `json:"targetBags,omitempty"`
}
