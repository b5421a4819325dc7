package dto

import (
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/hamali"
)

// CreateHamaliEntryRequest records a labor charge, either tied to a
// movement or standalone.
type CreateHamaliEntryRequest struct {
	MovementID  *id.ID         `json:"movementId"`
	WorkType    string         `json:"workType" binding:"required"`
	Date        string         `json:"date" binding:"required"`
	Bags        int64          `json:"bags"`
	NetWeightKg types.Quantity `json:"netWeightKg"`
	Comment     string         `json:"comment"`
}

// ToInput parses the request into the service input.
func (r *CreateHamaliEntryRequest) ToInput() (hamali.CreateInput, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return hamali.CreateInput{}, apperror.NewValidation("invalid date").WithDetail("date", r.Date)
	}
	return hamali.CreateInput{
		MovementID:  r.MovementID,
		WorkType:    r.WorkType,
		Date:        date,
		Bags:        r.Bags,
		NetWeightKg: r.NetWeightKg,
		Comment:     r.Comment,
	}, nil
}

// HamaliListQuery filters the labor charge listing.
type HamaliListQuery struct {
	WorkType   string `form:"workType"`
	MovementID string `form:"movementId"`
	Unpriced   *bool  `form:"unpriced"`
	DateFrom   string `form:"dateFrom"`
	DateTo     string `form:"dateTo"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}

// ToFilter produces the repository filter.
func (q *HamaliListQuery) ToFilter() (hamali.ListFilter, error) {
	f := hamali.ListFilter{}
	f.Limit = q.Limit
	f.Offset = q.Offset

	if q.WorkType != "" {
		f.WorkType = &q.WorkType
	}
	if q.MovementID != "" {
		mid, err := id.Parse(q.MovementID)
		if err != nil {
			return f, apperror.NewValidation("invalid movementId").WithDetail("movementId", q.MovementID)
		}
		f.MovementID = &mid
	}
	f.Unpriced = q.Unpriced

	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return f, err
	}
	f.DateFrom = from
	f.DateTo = to
	return f, nil
}
