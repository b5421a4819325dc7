package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/movements"
	"millstock/internal/infrastructure/http/v1/dto"
)

// MovementHandler serves the movement journal: proposals in, pending
// movements out, approval transitions.
type MovementHandler struct {
	*BaseHandler
	service *movements.Service
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *movements.Service) *MovementHandler {
	return &MovementHandler{BaseHandler: base, service: service}
}

// Create handles POST /movements - a single proposal.
// A gate rejection surfaces as 422 INSUFFICIENT_STOCK with the shortfall
// detail; nothing is persisted in that case.
func (h *MovementHandler) Create(c *gin.Context) {
	var proposal movements.Proposal
	if !h.BindJSON(c, &proposal) {
		return
	}

	movement, err := h.service.Create(c.Request.Context(), proposal)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedObject(c, movement)
}

// CreateBatch handles POST /movements/batch - all-or-nothing.
func (h *MovementHandler) CreateBatch(c *gin.Context) {
	var proposals []movements.Proposal
	if !h.BindJSON(c, &proposals) {
		return
	}
	if len(proposals) == 0 {
		h.Error(c, apperror.NewValidation("empty batch"))
		return
	}

	created, err := h.service.CreateBatch(c.Request.Context(), proposals)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CompleteIdempotency(c, http.StatusCreated, "application/json", created)
	c.JSON(http.StatusCreated, created)
}

// List handles GET /movements.
func (h *MovementHandler) List(c *gin.Context) {
	var query dto.MovementListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /movements/:id.
func (h *MovementHandler) Get(c *gin.Context) {
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	movement, err := h.service.GetByID(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, movement)
}

// Approve handles POST /movements/:id/approve - posts the ledger legs.
func (h *MovementHandler) Approve(c *gin.Context) {
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	movement, err := h.service.Approve(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, movement)
}

// AdminApprove handles POST /movements/:id/admin-approve - the second
// tier for movements the approval policy flagged.
func (h *MovementHandler) AdminApprove(c *gin.Context) {
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	movement, err := h.service.AdminApprove(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, movement)
}

// Reject handles POST /movements/:id/reject.
func (h *MovementHandler) Reject(c *gin.Context) {
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	var req dto.RejectMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movement, err := h.service.Reject(c.Request.Context(), movementID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, movement)
}

// Delete handles DELETE /movements/:id. Only unposted movements may go;
// posted ones leave through the recovery-backed cleanup.
func (h *MovementHandler) Delete(c *gin.Context) {
	movementID, ok := h.movementID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

func (h *MovementHandler) movementID(c *gin.Context) (id.ID, bool) {
	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return id.Nil(), false
	}
	return movementID, true
}
