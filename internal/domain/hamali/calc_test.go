package hamali

import (
	"testing"

	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/hamalirate"
)

func kg(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func assertMoney(t *testing.T, name string, got types.Money, want string) {
	t.Helper()
	if !got.Equal(types.MustMoney(want)) {
		t.Errorf("%s = %s, want %s", name, got.String(), want)
	}
}

// perBagBand is a full tariff with every component on the per-bag method.
func perBagBand(rateType string) *hamalirate.HamaliRate {
	r := hamalirate.NewHamaliRate("HRT-001", "Paddy unloading", "paddy unloading", rateType)
	r.BaseRate = types.MustMoney("8")
	r.Sute = kg("0.5")
	r.Hamali = types.MustMoney("1.2")
	r.Brokerage = types.MustMoney("0.6")
	r.LoadingFee = types.MustMoney("0.4")
	r.EGB = types.MustMoney("0.25")
	return r
}

func TestCalculate_PerBagComponents(t *testing.T) {
	// 50 bags, 1500 kg: sute 25 kg, base (1475/75)*8 = 157.33,
	// hamali 60, brokerage 30, loading fee 20, EGB 12.50.
	c := Calculate(perBagBand(hamalirate.RateTypeCDL), 50, kg("1500"))

	assertMoney(t, "SuteWeightKg", c.SuteWeightKg, "25")
	assertMoney(t, "BaseAmount", c.BaseAmount, "157.33")
	assertMoney(t, "HamaliAmount", c.HamaliAmount, "60")
	assertMoney(t, "BrokerageAmount", c.BrokerageAmount, "30")
	assertMoney(t, "LoadingFeeAmount", c.LoadingFeeAmount, "20")
	assertMoney(t, "EGBAmount", c.EGBAmount, "12.50")
	assertMoney(t, "Total", c.Total, "279.83")
}

func TestCalculate_RateTypeGating(t *testing.T) {
	tests := []struct {
		rateType  string
		wantLF    string
		wantEGB   string
		wantTotal string
	}{
		// CDL: everything applies.
		{hamalirate.RateTypeCDL, "20", "12.50", "279.83"},
		// MDL: mill-side, no loading fee; loose load, EGB applies.
		{hamalirate.RateTypeMDL, "0", "12.50", "259.83"},
		// MDWB: mill-side weighbridge, neither applies.
		{hamalirate.RateTypeMDWB, "0", "0", "247.33"},
		// GENERAL: loading fee applies, no EGB.
		{hamalirate.RateTypeGeneral, "20", "0", "267.33"},
	}

	for _, tt := range tests {
		t.Run(tt.rateType, func(t *testing.T) {
			c := Calculate(perBagBand(tt.rateType), 50, kg("1500"))
			assertMoney(t, "LoadingFeeAmount", c.LoadingFeeAmount, tt.wantLF)
			assertMoney(t, "EGBAmount", c.EGBAmount, tt.wantEGB)
			assertMoney(t, "Total", c.Total, tt.wantTotal)
		})
	}
}

func TestCalculate_PerQuintalMethods(t *testing.T) {
	r := hamalirate.NewHamaliRate("HRT-002", "Rice loading", "rice loading", hamalirate.RateTypeGeneral)
	r.BaseRate = types.MustMoney("30")
	r.BaseRateMethod = hamalirate.MethodPerQuintal
	r.Sute = kg("0.5")
	r.SuteMethod = hamalirate.MethodPerQuintal
	r.Hamali = types.MustMoney("1.2")
	r.HamaliMethod = hamalirate.MethodPerQuintal
	r.EGB = types.MustMoney("0.25")

	// 57 bags, 1482 kg = 14.82 q: sute 7.41 kg, base (1474.59/100)*30 = 442.38,
	// hamali 1.2*14.82 = 17.78. GENERAL never charges EGB.
	c := Calculate(r, 57, kg("1482"))

	assertMoney(t, "SuteWeightKg", c.SuteWeightKg, "7.41")
	assertMoney(t, "BaseAmount", c.BaseAmount, "442.38")
	assertMoney(t, "HamaliAmount", c.HamaliAmount, "17.78")
	assertMoney(t, "BrokerageAmount", c.BrokerageAmount, "0")
	assertMoney(t, "EGBAmount", c.EGBAmount, "0")
	assertMoney(t, "Total", c.Total, "460.16")
}

func TestCalculate_ZeroSute(t *testing.T) {
	r := perBagBand(hamalirate.RateTypeMDWB)
	r.Sute = 0

	// Base over the full 1500 kg: (1500/75)*8 = 160.
	c := Calculate(r, 50, kg("1500"))

	assertMoney(t, "SuteWeightKg", c.SuteWeightKg, "0")
	assertMoney(t, "BaseAmount", c.BaseAmount, "160")
	assertMoney(t, "Total", c.Total, "250")
}
