// Package stockkey defines the canonical composite key every stock balance
// is grouped by: location, variety, product type, packaging brand, and the
// packaging weight in a fixed 2-decimal rendering.
//
// Historical movement rows spell the same logical key many ways
// ("SUM25_RNR-Raw" vs "Sum25 RNR Raw", weight 26 vs 26.00). Normalization
// happens once at the ingestion boundary; the core stores and compares
// canonical keys only, never raw strings.
package stockkey

import (
	"hash/fnv"
	"strings"
	"unicode"

	"millstock/internal/core/types"
)

// Key is the canonical balance bucket identifier. All fields are normalized;
// PackagingKg carries exactly two decimals so 26, 26.0 and 26.00 collide.
type Key struct {
	LocationCode   string `db:"location_code" json:"locationCode"`
	Variety        string `db:"variety" json:"variety"`
	ProductType    string `db:"product_type" json:"productType"`
	PackagingBrand string `db:"packaging_brand" json:"packagingBrand"`
	PackagingKg    string `db:"packaging_kg" json:"packagingKg"`
}

// New builds a canonical Key from raw inputs.
func New(location, variety, productType, brand string, kg types.Quantity) Key {
	return Key{
		LocationCode:   NormalizeLocation(location),
		Variety:        NormalizeVariety(variety),
		ProductType:    NormalizeProductType(productType),
		PackagingBrand: NormalizeBrand(brand),
		PackagingKg:    FormatKg(kg),
	}
}

// String renders the key as a single pipe-joined token. Used for cache keys,
// advisory lock hashing and log fields.
func (k Key) String() string {
	return strings.Join([]string{
		k.LocationCode, k.Variety, k.ProductType, k.PackagingBrand, k.PackagingKg,
	}, "|")
}

// IsZero reports whether every component is empty.
func (k Key) IsZero() bool {
	return k.LocationCode == "" && k.Variety == "" && k.ProductType == "" &&
		k.PackagingBrand == "" && k.PackagingKg == ""
}

// LockToken returns a stable int64 for pg_advisory_xact_lock.
// FNV-1a over the canonical rendering; collisions only widen the lock scope,
// never narrow it, so correctness does not depend on uniqueness.
func (k Key) LockToken() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(k.String()))
	return int64(h.Sum64())
}

// NormalizeVariety canonicalizes a free-text variety name: trimmed,
// lowercased, with underscores, hyphens and whitespace runs all collapsed to
// a single space. "SUM25_RNR-Raw", "Sum25  RNR   Raw" and "sum25 rnr raw"
// are the same variety.
func NormalizeVariety(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return strings.ToLower(strings.Join(fields, " "))
}

// NormalizeLocation canonicalizes a location code: trimmed, inner whitespace
// collapsed, uppercased. Hyphens are significant in location codes and are
// kept as-is.
func NormalizeLocation(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// NormalizeProductType canonicalizes a product type (paddy, rice, ...).
func NormalizeProductType(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeBrand canonicalizes a packaging brand name. Catalog lookups are
// case-insensitive and whitespace-trimmed.
func NormalizeBrand(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FormatKg renders a bag weight with exactly two decimals, rounding any
// sub-centigram remainder half up. The fixed rendering is part of the key:
// a weight recorded as 26 must land in the same bucket as 26.00.
func FormatKg(kg types.Quantity) string {
	raw := kg.Int64Scaled()
	neg := raw < 0
	if neg {
		raw = -raw
	}
	// Quantity is scaled 1e4; keep two decimals.
	cents := (raw + 50) / 100
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	writeInt(&b, cents/100)
	b.WriteByte('.')
	frac := cents % 100
	if frac < 10 {
		b.WriteByte('0')
	}
	writeInt(&b, frac)
	return b.String()
}

func writeInt(b *strings.Builder, v int64) {
	if v >= 10 {
		writeInt(b, v/10)
	}
	b.WriteByte(byte('0' + v%10))
}
