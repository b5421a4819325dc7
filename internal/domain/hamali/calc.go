package hamali

import (
	"github.com/shopspring/decimal"

	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/hamalirate"
)

var hundred = decimal.NewFromInt(100)

// Charge is the component breakdown of one hamali computation. Components
// are rounded to 2 decimals for storage; Total rounds the exact sum, so the
// parts may differ from it by a few paise.
type Charge struct {
	SuteWeightKg     decimal.Decimal `json:"suteWeightKg"`
	BaseAmount       types.Money     `json:"baseAmount"`
	HamaliAmount     types.Money     `json:"hamaliAmount"`
	BrokerageAmount  types.Money     `json:"brokerageAmount"`
	LoadingFeeAmount types.Money     `json:"loadingFeeAmount"`
	EGBAmount        types.Money     `json:"egbAmount"`
	Total            types.Money     `json:"total"`
}

// quantityDecimal converts a fixed-point quantity to decimal exactly.
func quantityDecimal(q types.Quantity) decimal.Decimal {
	return decimal.New(q.Int64Scaled(), -4)
}

// componentAmount scales one tariff component: per bag, or per quintal of
// net weight.
func componentAmount(rate types.Money, method hamalirate.Method, bags, netKg decimal.Decimal) decimal.Decimal {
	if method == hamalirate.MethodPerQuintal {
		return rate.Mul(netKg.Div(hundred))
	}
	return rate.Mul(bags)
}

// Calculate prices a load against a tariff band.
//
// The base rate applies to the sute-net weight over the band divisor (75 kg
// per bag, 100 kg per quintal). Mill-side work (MDL, MDWB) carries no
// loading fee; only loose loads (CDL, MDL) charge extra gunny bags.
func Calculate(band *hamalirate.HamaliRate, bags int64, netWeightKg types.Quantity) Charge {
	bagsD := decimal.NewFromInt(bags)
	netKg := quantityDecimal(netWeightKg)
	sute := quantityDecimal(band.Sute)

	var suteWeight decimal.Decimal
	if band.SuteMethod == hamalirate.MethodPerQuintal {
		suteWeight = netKg.Div(hundred).Mul(sute)
	} else {
		suteWeight = sute.Mul(bagsD)
	}

	suteNetKg := netKg.Sub(suteWeight)
	divisor := decimal.NewFromInt(band.BaseDivisor())
	baseAmount := suteNetKg.Div(divisor).Mul(band.BaseRate)

	hamaliAmount := componentAmount(band.Hamali, band.HamaliMethod, bagsD, netKg)
	brokerageAmount := componentAmount(band.Brokerage, band.BrokerageMethod, bagsD, netKg)

	var loadingFeeAmount decimal.Decimal
	if band.LoadingFeeApplies() {
		loadingFeeAmount = componentAmount(band.LoadingFee, band.LoadingFeeMethod, bagsD, netKg)
	}

	var egbAmount decimal.Decimal
	if band.EGBApplies() {
		egbAmount = bagsD.Mul(band.EGB)
	}

	total := baseAmount.
		Add(hamaliAmount).
		Add(brokerageAmount).
		Add(loadingFeeAmount).
		Add(egbAmount).
		Round(2)

	return Charge{
		SuteWeightKg:     suteWeight.Round(4),
		BaseAmount:       baseAmount.Round(2),
		HamaliAmount:     hamaliAmount.Round(2),
		BrokerageAmount:  brokerageAmount.Round(2),
		LoadingFeeAmount: loadingFeeAmount.Round(2),
		EGBAmount:        egbAmount.Round(2),
		Total:            total,
	}
}
