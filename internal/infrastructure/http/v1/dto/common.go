// Package dto provides request binding types for the HTTP API. Responses
// are the domain types themselves; their json tags are the wire shape.
package dto

import (
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
)

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse documents the error body produced by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// SetDeletionMarkRequest toggles the soft-delete mark.
type SetDeletionMarkRequest struct {
	Marked bool `json:"marked"`
}

// parseDateRange parses optional YYYY-MM-DD bounds. The upper bound is
// inclusive of the named day.
func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		t, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return nil, nil, apperror.NewValidation("invalid dateFrom").WithDetail("dateFrom", fromRaw)
		}
		from = &t
	}
	if toRaw != "" {
		t, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return nil, nil, apperror.NewValidation("invalid dateTo").WithDetail("dateTo", toRaw)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	return from, to, nil
}
