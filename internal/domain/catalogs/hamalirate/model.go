// Package hamalirate provides the hamali rate master: labor tariffs for
// loading and unloading work, banded by net weight per work type. Entries
// snapshot the computed amount at write time; editing a rate never reprices
// past entries.
package hamalirate

import (
	"context"

	"github.com/shopspring/decimal"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/types"
)

// Method defines how one tariff component scales.
type Method string

const (
	// MethodPerBag scales by bag count
	MethodPerBag Method = "per_bag"
	// MethodPerQuintal scales by net weight / 100
	MethodPerQuintal Method = "per_quintal"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodPerBag || m == MethodPerQuintal
}

// Rate types. The type decides which components apply: mill-side work
// (MDL, MDWB) carries no loading fee, and only loose loads (CDL, MDL)
// charge extra gunny bags.
const (
	RateTypeCDL     = "CDL"
	RateTypeMDL     = "MDL"
	RateTypeMDWB    = "MDWB"
	RateTypeGeneral = "GENERAL"
)

// HamaliRate is one tariff band: a work type, a rate type, and an optional
// net-weight band the tariff applies to. Every component has its own
// calculation method.
type HamaliRate struct {
	entity.Catalog

	// WorkType groups tariff bands (e.g. "paddy unloading")
	WorkType string `db:"work_type" json:"workType"`

	// RateType is one of CDL, MDL, MDWB, GENERAL
	RateType string `db:"rate_type" json:"rateType"`

	// BaseRate prices the sute-net weight
	BaseRate       types.Money `db:"base_rate" json:"baseRate"`
	BaseRateMethod Method      `db:"base_rate_method" json:"baseRateMethod"`

	// Sute is the weight deduction subtracted before the base rate
	// applies: kg per bag, or kg per quintal of net weight
	Sute       types.Quantity `db:"sute" json:"sute"`
	SuteMethod Method         `db:"sute_method" json:"suteMethod"`

	// Hamali is the laborer fee component
	Hamali       types.Money `db:"hamali" json:"hamali"`
	HamaliMethod Method      `db:"hamali_method" json:"hamaliMethod"`

	// Brokerage component
	Brokerage       types.Money `db:"brokerage" json:"brokerage"`
	BrokerageMethod Method      `db:"brokerage_method" json:"brokerageMethod"`

	// LoadingFee component; forced to zero for MDL and MDWB
	LoadingFee       types.Money `db:"loading_fee" json:"loadingFee"`
	LoadingFeeMethod Method      `db:"loading_fee_method" json:"loadingFeeMethod"`

	// EGB is the extra gunny bag charge, always per bag
	EGB types.Money `db:"egb" json:"egb"`

	// Weight band bounds in kg, inclusive. MaxWeightKg zero = open-ended.
	MinWeightKg types.Quantity `db:"min_weight_kg" json:"minWeightKg"`
	MaxWeightKg types.Quantity `db:"max_weight_kg" json:"maxWeightKg"`
}

// NewHamaliRate creates a tariff band with all methods defaulted to per_bag.
func NewHamaliRate(code, name, workType, rateType string) *HamaliRate {
	return &HamaliRate{
		Catalog:          entity.NewCatalog(code, name),
		WorkType:         workType,
		RateType:         rateType,
		BaseRateMethod:   MethodPerBag,
		SuteMethod:       MethodPerBag,
		HamaliMethod:     MethodPerBag,
		BrokerageMethod:  MethodPerBag,
		LoadingFeeMethod: MethodPerBag,
	}
}

// Validate implements entity.Validatable interface.
func (r *HamaliRate) Validate(ctx context.Context) error {
	if err := r.Catalog.Validate(ctx); err != nil {
		return err
	}

	if r.WorkType == "" {
		return apperror.NewValidation("work type is required").
			WithDetail("field", "workType")
	}

	switch r.RateType {
	case RateTypeCDL, RateTypeMDL, RateTypeMDWB, RateTypeGeneral:
	default:
		return apperror.NewValidation("invalid rate type").
			WithDetail("field", "rateType").
			WithDetail("value", r.RateType)
	}

	for field, m := range map[string]Method{
		"baseRateMethod":   r.BaseRateMethod,
		"suteMethod":       r.SuteMethod,
		"hamaliMethod":     r.HamaliMethod,
		"brokerageMethod":  r.BrokerageMethod,
		"loadingFeeMethod": r.LoadingFeeMethod,
	} {
		if !m.Valid() {
			return apperror.NewValidation("invalid calculation method").
				WithDetail("field", field).
				WithDetail("value", string(m))
		}
	}

	for field, m := range map[string]types.Money{
		"baseRate":   r.BaseRate,
		"hamali":     r.Hamali,
		"brokerage":  r.Brokerage,
		"loadingFee": r.LoadingFee,
		"egb":        r.EGB,
	} {
		if m.LessThan(decimal.Zero) {
			return apperror.NewValidation("rate component must not be negative").
				WithDetail("field", field).
				WithDetail("value", m.String())
		}
	}

	if r.Sute.IsNegative() {
		return apperror.NewValidation("sute must not be negative").
			WithDetail("field", "sute").
			WithDetail("value", r.Sute.String())
	}

	if r.MinWeightKg.IsNegative() {
		return apperror.NewValidation("min weight must not be negative").
			WithDetail("field", "minWeightKg")
	}

	if !r.MaxWeightKg.IsZero() && r.MaxWeightKg < r.MinWeightKg {
		return apperror.NewValidation("max weight must not be below min weight").
			WithDetail("field", "maxWeightKg").
			WithDetail("min", r.MinWeightKg.String()).
			WithDetail("max", r.MaxWeightKg.String())
	}

	return nil
}

// BaseDivisor returns the weight divisor for the base rate: 75 per bag,
// 100 per quintal.
func (r *HamaliRate) BaseDivisor() int64 {
	if r.BaseRateMethod == MethodPerBag {
		return 75
	}
	return 100
}

// LoadingFeeApplies reports whether the loading fee component counts.
func (r *HamaliRate) LoadingFeeApplies() bool {
	return r.RateType != RateTypeMDL && r.RateType != RateTypeMDWB
}

// EGBApplies reports whether the extra gunny bag component counts.
func (r *HamaliRate) EGBApplies() bool {
	return r.RateType == RateTypeCDL || r.RateType == RateTypeMDL
}

// Covers reports whether weightKg falls inside this band.
func (r *HamaliRate) Covers(weightKg types.Quantity) bool {
	if weightKg < r.MinWeightKg {
		return false
	}
	if r.MaxWeightKg.IsZero() {
		return true
	}
	return weightKg <= r.MaxWeightKg
}
