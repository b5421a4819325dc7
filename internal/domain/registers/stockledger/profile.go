// Package stockledger provides the stock ledger register: every balance in
// the system is a fold over its legs, parameterized by a cutoff profile.
// There is no persisted balance table.
package stockledger

import (
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
)

// Profile decides, per leg kind, whether legs dated exactly on the boundary
// date count. Closing balances include the whole day; availability checks
// exclude the conversion legs that same-day ordering cannot rank.
type Profile struct {
	name   string
	strict map[entity.LegKind]bool
}

var allLegKinds = []entity.LegKind{
	entity.LegKindProduction,
	entity.LegKindPurchase,
	entity.LegKindSale,
	entity.LegKindConversionSource,
	entity.LegKindConversionTarget,
}

var (
	// ProfileClosing includes every kind through the boundary date.
	// This is the physical end-of-day balance.
	ProfileClosing = Profile{name: "closing"}

	// ProfileSaleGate feeds the availability check for a sale: same-day
	// receipts (including conversion targets) are sellable, but same-day
	// conversion sources are handled separately as explicit deductions.
	ProfileSaleGate = Profile{
		name: "sale_gate",
		strict: map[entity.LegKind]bool{
			entity.LegKindConversionSource: true,
		},
	}

	// ProfileConversionGate feeds the availability check for a palti
	// source. Same-day conversion receipts are additionally excluded:
	// stock converted today cannot be converted again today.
	ProfileConversionGate = Profile{
		name: "conversion_gate",
		strict: map[entity.LegKind]bool{
			entity.LegKindConversionSource: true,
			entity.LegKindConversionTarget: true,
		},
	}
)

// GateProfile returns the availability profile for a deducting leg kind.
func GateProfile(consumer entity.LegKind) (Profile, error) {
	switch consumer {
	case entity.LegKindSale:
		return ProfileSaleGate, nil
	case entity.LegKindConversionSource:
		return ProfileConversionGate, nil
	default:
		return Profile{}, apperror.NewValidation("kind does not deduct stock").
			WithDetail("kind", string(consumer))
	}
}

// Name identifies the profile in cache keys and logs.
func (p Profile) Name() string { return p.name }

// StrictBefore reports whether legs of kind k count only strictly before
// the boundary date.
func (p Profile) StrictBefore(k entity.LegKind) bool { return p.strict[k] }

// Partition splits all leg kinds into boundary-inclusive and strict sets,
// in declaration order. Used to build the fold query.
func (p Profile) Partition() (inclusive, strict []entity.LegKind) {
	for _, k := range allLegKinds {
		if p.strict[k] {
			strict = append(strict, k)
		} else {
			inclusive = append(inclusive, k)
		}
	}
	return inclusive, strict
}

// Includes reports whether a leg of kind k dated period counts toward a
// fold bounded by asOf. Both dates are day-normalized.
func (p Profile) Includes(k entity.LegKind, period, asOf time.Time) bool {
	if p.strict[k] {
		return period.Before(asOf)
	}
	return !period.After(asOf)
}

// DayOf normalizes a timestamp to its business date (midnight UTC).
// Ledger periods and boundary dates always compare day to day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
