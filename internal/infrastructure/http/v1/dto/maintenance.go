package dto

import (
	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
)

// CleanupRequest names the movements to archive and remove. The reason is
// recorded on the snapshot batch.
type CleanupRequest struct {
	MovementIDs []string `json:"movementIds" binding:"required,min=1"`
	Reason      string   `json:"reason" binding:"required"`
}

// ParsedIDs converts the raw ID strings.
func (r *CleanupRequest) ParsedIDs() ([]id.ID, error) {
	ids := make([]id.ID, 0, len(r.MovementIDs))
	for _, raw := range r.MovementIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			return nil, apperror.NewValidation("invalid movement id").WithDetail("id", raw)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

// LimitQuery bounds batch maintenance passes. Zero means the service
// default.
type LimitQuery struct {
	Limit int `form:"limit"`
}
