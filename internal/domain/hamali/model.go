// Package hamali provides hamali charge entries: labor cost records that
// snapshot the tariff and computed amount at write time. Repricing never
// happens; editing the rate master affects future entries only.
package hamali

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/registers/stockledger"
)

// HamaliEntry is one labor charge record. Rate, amount and the component
// breakdown are frozen at creation; legacy rows imported without a price
// carry nil until the backfill prices them once.
type HamaliEntry struct {
	entity.Document

	// MovementID links the charge to the movement it was incurred for
	MovementID *id.ID `db:"movement_id" json:"movementId,omitempty"`

	// WorkType selects the tariff band family, stored lowercase
	WorkType string `db:"work_type" json:"workType"`

	// Snapshot of the band that priced this entry
	RateCode string `db:"rate_code" json:"rateCode,omitempty"`
	RateType string `db:"rate_type" json:"rateType,omitempty"`

	Bags        int64          `db:"bags" json:"bags"`
	NetWeightKg types.Quantity `db:"net_weight_kg" json:"netWeightKg"`

	// Rate and Amount are nil for unpriced legacy rows
	Rate   *types.Money `db:"rate" json:"rate,omitempty"`
	Amount *types.Money `db:"amount" json:"amount,omitempty"`

	// Breakdown is the per-component charge detail as stored JSON
	Breakdown json.RawMessage `db:"breakdown" json:"breakdown,omitempty"`
}

// NewHamaliEntry creates an unpriced entry dated to the given business day.
func NewHamaliEntry(workType string, date time.Time, bags int64, netWeightKg types.Quantity) *HamaliEntry {
	e := &HamaliEntry{
		Document:    entity.NewDocument(),
		WorkType:    strings.ToLower(strings.TrimSpace(workType)),
		Bags:        bags,
		NetWeightKg: netWeightKg,
	}
	e.Date = stockledger.DayOf(date)
	return e
}

// Priced reports whether the amount snapshot exists.
func (e *HamaliEntry) Priced() bool {
	return e.Amount != nil
}

// SetCharge freezes the band identity, rate and computed amounts onto the
// entry.
func (e *HamaliEntry) SetCharge(band *hamalirate.HamaliRate, c Charge) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	rate := band.BaseRate
	total := c.Total

	e.RateCode = band.Code
	e.RateType = band.RateType
	e.Rate = &rate
	e.Amount = &total
	e.Breakdown = raw
	return nil
}

// Validate implements entity.Validatable.
func (e *HamaliEntry) Validate(ctx context.Context) error {
	if err := e.Document.Validate(ctx); err != nil {
		return err
	}

	if e.WorkType == "" {
		return apperror.NewValidation("work type is required").
			WithDetail("field", "workType")
	}

	if e.Bags <= 0 {
		return apperror.NewValidation("bags must be positive").
			WithDetail("field", "bags").
			WithDetail("value", e.Bags)
	}

	if e.NetWeightKg.IsNegative() {
		return apperror.NewValidation("net weight must not be negative").
			WithDetail("field", "netWeightKg").
			WithDetail("value", e.NetWeightKg.String())
	}

	if e.Amount != nil && e.Rate == nil {
		return apperror.NewValidation("priced entry is missing its rate snapshot").
			WithDetail("field", "rate")
	}

	return nil
}
