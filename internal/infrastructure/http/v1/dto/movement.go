package dto

import (
	"millstock/internal/core/apperror"
	"millstock/internal/domain/movements"
)

// MovementListQuery filters the movement listing. Dates are day-granular
// (YYYY-MM-DD) like everything else in the journal.
type MovementListQuery struct {
	Type        string `form:"type"`
	Status      string `form:"status"`
	Location    string `form:"location"`
	Variety     string `form:"variety"`
	ProductType string `form:"productType"`
	Posted      *bool  `form:"posted"`
	DateFrom    string `form:"dateFrom"`
	DateTo      string `form:"dateTo"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// ToFilter validates enum values and produces the repository filter.
func (q *MovementListQuery) ToFilter() (movements.ListFilter, error) {
	f := movements.ListFilter{}
	f.Limit = q.Limit
	f.Offset = q.Offset

	if q.Type != "" {
		t := movements.MovementType(q.Type)
		if !t.Valid() {
			return f, apperror.NewValidation("unknown movement type").WithDetail("type", q.Type)
		}
		f.Type = &t
	}
	if q.Status != "" {
		s := movements.MovementStatus(q.Status)
		if !s.Valid() {
			return f, apperror.NewValidation("unknown movement status").WithDetail("status", q.Status)
		}
		f.Status = &s
	}
	if q.Location != "" {
		f.LocationCode = &q.Location
	}
	if q.Variety != "" {
		f.Variety = &q.Variety
	}
	if q.ProductType != "" {
		f.ProductType = &q.ProductType
	}
	f.Posted = q.Posted

	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return f, err
	}
	f.DateFrom = from
	f.DateTo = to
	return f, nil
}

// RejectMovementRequest carries the mandatory rejection reason.
type RejectMovementRequest struct {
	Reason string `json:"reason" binding:"required"`
}
