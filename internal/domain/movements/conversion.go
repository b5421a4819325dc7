package movements

import (
	"millstock/internal/core/apperror"
	"millstock/internal/core/types"
)

// ConversionResult holds the derived shortage of a repackaging.
type ConversionResult struct {
	// ShortageKg is the weight lost between source and target side
	ShortageKg types.Quantity `json:"shortageKg"`

	// ShortageBags is the shortage expressed in whole target bags,
	// rounded half up
	ShortageBags int64 `json:"shortageBags"`
}

// Convert derives the shortage of repackaging sourceBags bags of sourceKg
// each into targetBags bags of targetKg each.
//
// A negative shortage means the target side claims more weight than the
// source provided; that is a data-entry defect and is rejected, never
// clamped or auto-corrected.
func Convert(sourceKg types.Quantity, sourceBags int64, targetKg types.Quantity, targetBags int64) (ConversionResult, error) {
	if !sourceKg.IsPositive() {
		return ConversionResult{}, apperror.NewValidation("source bag weight must be positive").
			WithDetail("field", "sourceKg").
			WithDetail("value", sourceKg.String())
	}
	if !targetKg.IsPositive() {
		return ConversionResult{}, apperror.NewValidation("target bag weight must be positive").
			WithDetail("field", "targetKg").
			WithDetail("value", targetKg.String())
	}
	if sourceBags <= 0 {
		return ConversionResult{}, apperror.NewValidation("source bags must be positive").
			WithDetail("field", "sourceBags").
			WithDetail("value", sourceBags)
	}
	if targetBags <= 0 {
		return ConversionResult{}, apperror.NewValidation("target bags must be positive").
			WithDetail("field", "targetBags").
			WithDetail("value", targetBags)
	}

	sourceWeight := sourceKg.MulInt(sourceBags)
	targetWeight := targetKg.MulInt(targetBags)
	shortageKg := sourceWeight - targetWeight

	if shortageKg.IsNegative() {
		return ConversionResult{}, apperror.NewInvalidConversion(
			"target weight exceeds source weight",
		).WithDetail("sourceKg", sourceWeight.String()).
			WithDetail("targetKg", targetWeight.String()).
			WithDetail("shortageKg", shortageKg.String())
	}

	return ConversionResult{
		ShortageKg:   shortageKg,
		ShortageBags: types.DivRoundHalfUp(shortageKg, targetKg),
	}, nil
}

// DeriveSourceBags derives the source bag count from a measured source
// weight in quintals: round_half_up(quintals × 100 / sourceKg).
func DeriveSourceBags(quintals types.Quantity, sourceKg types.Quantity) (int64, error) {
	if !sourceKg.IsPositive() {
		return 0, apperror.NewValidation("source bag weight must be positive").
			WithDetail("field", "sourceKg").
			WithDetail("value", sourceKg.String())
	}
	if quintals.IsNegative() {
		return 0, apperror.NewValidation("quintals must not be negative").
			WithDetail("field", "quintals").
			WithDetail("value", quintals.String())
	}
	return types.DivRoundHalfUp(types.QuintalsToKg(quintals), sourceKg), nil
}
