package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/maintenance"
	"millstock/internal/infrastructure/http/v1/dto"
)

// MaintenanceHandler exposes the admin-only repair surface: backfills,
// archival cleanup with restore, and the consistency report.
type MaintenanceHandler struct {
	*BaseHandler
	service *maintenance.Service
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(base *BaseHandler, service *maintenance.Service) *MaintenanceHandler {
	return &MaintenanceHandler{BaseHandler: base, service: service}
}

// BackfillSourceBags handles POST /maintenance/backfill/source-bags.
// Fills only null source-bag columns, so re-running is harmless.
func (h *MaintenanceHandler) BackfillSourceBags(c *gin.Context) {
	var query dto.LimitQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.service.BackfillSourceBags(c.Request.Context(), query.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// BackfillHamaliAmounts handles POST /maintenance/backfill/hamali-amounts.
func (h *MaintenanceHandler) BackfillHamaliAmounts(c *gin.Context) {
	var query dto.LimitQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.service.BackfillHamaliAmounts(c.Request.Context(), query.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Cleanup handles POST /maintenance/cleanup - snapshots then deletes the
// named movements. The returned batch id is the restore handle.
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	var req dto.CleanupRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ids, err := req.ParsedIDs()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Cleanup(c.Request.Context(), ids, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Restore handles POST /maintenance/restore/:batchID.
func (h *MaintenanceHandler) Restore(c *gin.Context) {
	batchID, err := id.Parse(c.Param("batchID"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid batch id format"))
		return
	}

	result, err := h.service.Restore(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Consistency handles GET /maintenance/consistency.
func (h *MaintenanceHandler) Consistency(c *gin.Context) {
	var query dto.LimitQuery
	if !h.BindQuery(c, &query) {
		return
	}

	report, err := h.service.ConsistencyReport(c.Request.Context(), query.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}
