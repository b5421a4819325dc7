package stockkey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"millstock/internal/core/types"
)

func TestNormalizeVariety(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"underscores and hyphens", "SUM25_RNR-Raw", "sum25 rnr raw"},
		{"whitespace runs", "Sum25  RNR   Raw", "sum25 rnr raw"},
		{"already canonical", "sum25 rnr raw", "sum25 rnr raw"},
		{"leading and trailing", "  JSR_Boiled ", "jsr boiled"},
		{"mixed separators", "hmt-_ sona", "hmt sona"},
		{"tabs", "bpt\t5204", "bpt 5204"},
		{"empty", "", ""},
		{"separators only", " _- ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVariety(tt.in))
		})
	}
}

func TestNormalizeVarietyIdempotent(t *testing.T) {
	inputs := []string{"SUM25_RNR-Raw", "  a__b  ", "plain", "Ponni-Raw"}
	for _, in := range inputs {
		once := NormalizeVariety(in)
		assert.Equal(t, once, NormalizeVariety(once))
	}
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "O-1", NormalizeLocation(" o-1 "))
	assert.Equal(t, "MILL GODOWN 2", NormalizeLocation("mill  godown 2"))
	assert.Equal(t, "KUNCHINITTU", NormalizeLocation("Kunchinittu"))
	assert.Equal(t, "", NormalizeLocation("   "))
}

func TestNormalizeBrandCaseInsensitive(t *testing.T) {
	assert.Equal(t, NormalizeBrand("Super Fine"), NormalizeBrand("  SUPER  FINE "))
}

func TestFormatKg(t *testing.T) {
	tests := []struct {
		name string
		in   types.Quantity
		want string
	}{
		{"whole number", types.NewQuantityFromInt(26), "26.00"},
		{"one decimal", types.NewQuantityFromFloat64(26.0), "26.00"},
		{"two decimals", types.NewQuantityFromFloat64(26.00), "26.00"},
		{"half kilo", types.NewQuantityFromFloat64(74.5), "74.50"},
		{"quarter", types.NewQuantityFromFloat64(0.25), "0.25"},
		{"rounds half up", types.NewQuantityFromInt64Scaled(259950), "26.00"},
		{"rounds down below half", types.NewQuantityFromInt64Scaled(259949), "25.99"},
		{"zero", types.Quantity(0), "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatKg(tt.in))
		})
	}
}

func TestKeyCollision(t *testing.T) {
	a := New("o-1", "SUM25_RNR-Raw", "Paddy", "Super", types.NewQuantityFromInt(26))
	b := New(" O-1", "sum25  rnr raw", "paddy", " SUPER ", types.NewQuantityFromFloat64(26.00))
	assert.Equal(t, a, b)
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.LockToken(), b.LockToken())
}

func TestKeyDistinct(t *testing.T) {
	base := New("O-1", "sum25 rnr raw", "paddy", "super", types.NewQuantityFromInt(26))
	other := New("O-2", "sum25 rnr raw", "paddy", "super", types.NewQuantityFromInt(26))
	assert.NotEqual(t, base.String(), other.String())
	assert.NotEqual(t, base.LockToken(), other.LockToken())

	heavier := New("O-1", "sum25 rnr raw", "paddy", "super", types.NewQuantityFromFloat64(30))
	assert.NotEqual(t, base.String(), heavier.String())
}

func TestKeyString(t *testing.T) {
	k := New("O-1", "sum25 rnr raw", "paddy", "super", types.NewQuantityFromInt(26))
	assert.Equal(t, "O-1|sum25 rnr raw|paddy|super|26.00", k.String())
}

func TestKeyIsZero(t *testing.T) {
	assert.True(t, Key{}.IsZero())
	assert.False(t, New("O-1", "x", "paddy", "b", types.NewQuantityFromInt(26)).IsZero())
}
