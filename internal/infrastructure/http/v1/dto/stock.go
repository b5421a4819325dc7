package dto

import (
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
	"millstock/internal/domain/registers/stockledger"
)

// BalanceQuery identifies one canonical stock position. Free-text values
// are canonicalized before the fold.
type BalanceQuery struct {
	Location    string `form:"location" binding:"required"`
	Variety     string `form:"variety" binding:"required"`
	ProductType string `form:"productType" binding:"required"`
	Brand       string `form:"packaging" binding:"required"`
	PackagingKg string `form:"packagingKg" binding:"required"`
	AsOf        string `form:"asOf"`
}

// Key builds the canonical stock key from the query.
func (q *BalanceQuery) Key() (stockkey.Key, error) {
	kg, err := types.ParseQuantity(q.PackagingKg)
	if err != nil {
		return stockkey.Key{}, err
	}
	return stockkey.New(q.Location, q.Variety, q.ProductType, q.Brand, kg), nil
}

// GridQuery narrows the grouped balance report.
type GridQuery struct {
	Location    string `form:"location"`
	Variety     string `form:"variety"`
	ProductType string `form:"productType"`
	Brand       string `form:"packaging"`
	IncludeZero bool   `form:"includeZero"`
	AsOf        string `form:"asOf"`
}

// Filter converts to the ledger grid filter with canonical values.
func (q *GridQuery) Filter() stockledger.GridFilter {
	return stockledger.GridFilter{
		LocationCode:   stockkey.NormalizeLocation(q.Location),
		Variety:        stockkey.NormalizeVariety(q.Variety),
		ProductType:    stockkey.NormalizeProductType(q.ProductType),
		PackagingBrand: stockkey.NormalizeBrand(q.Brand),
		IncludeZero:    q.IncludeZero,
	}
}

// ParseAsOf resolves the asOf parameter; empty means now.
func ParseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// BalanceResponse is the single-key balance with its echo of the key.
type BalanceResponse struct {
	stockkey.Key
	stockledger.Balance

	Quintals types.Quantity `json:"quintals"`
	AsOf     string         `json:"asOf"`
}

// LegsQuery filters the raw ledger leg audit. Key components are
// all-or-nothing: a partial key cannot identify a bucket.
type LegsQuery struct {
	Location    string `form:"location"`
	Variety     string `form:"variety"`
	ProductType string `form:"productType"`
	Brand       string `form:"packaging"`
	PackagingKg string `form:"packagingKg"`
	RecorderID  string `form:"recorderId"`
	Kind        string `form:"kind"`
	DateFrom    string `form:"dateFrom"`
	DateTo      string `form:"dateTo"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// ToFilter validates and converts to the ledger leg filter.
func (q *LegsQuery) ToFilter() (stockledger.LegFilter, error) {
	f := stockledger.LegFilter{Limit: q.Limit, Offset: q.Offset}

	keyParts := []string{q.Location, q.Variety, q.ProductType, q.Brand, q.PackagingKg}
	var present int
	for _, p := range keyParts {
		if p != "" {
			present++
		}
	}
	switch present {
	case 0:
	case len(keyParts):
		kg, err := types.ParseQuantity(q.PackagingKg)
		if err != nil {
			return f, apperror.NewValidation("invalid packagingKg").WithDetail("packagingKg", q.PackagingKg)
		}
		key := stockkey.New(q.Location, q.Variety, q.ProductType, q.Brand, kg)
		f.Key = &key
	default:
		return f, apperror.NewValidation("a stock key filter needs location, variety, productType, packaging and packagingKg together")
	}

	if q.RecorderID != "" {
		rid, err := id.Parse(q.RecorderID)
		if err != nil {
			return f, apperror.NewValidation("invalid recorderId").WithDetail("recorderId", q.RecorderID)
		}
		f.RecorderID = &rid
	}
	if q.Kind != "" {
		kind := entity.LegKind(q.Kind)
		if !kind.Valid() {
			return f, apperror.NewValidation("unknown leg kind").WithDetail("kind", q.Kind)
		}
		f.Kind = &kind
	}

	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return f, err
	}
	f.DateFrom = from
	f.DateTo = to
	return f, nil
}
