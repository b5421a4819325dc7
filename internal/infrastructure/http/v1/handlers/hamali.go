package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/hamali"
	"millstock/internal/infrastructure/http/v1/dto"
)

// HamaliHandler serves labor charge entries.
type HamaliHandler struct {
	*BaseHandler
	service *hamali.Service
}

// NewHamaliHandler creates a new hamali handler.
func NewHamaliHandler(base *BaseHandler, service *hamali.Service) *HamaliHandler {
	return &HamaliHandler{BaseHandler: base, service: service}
}

// Create handles POST /hamali/entries. The applicable rate is resolved
// and snapshotted at entry time; later rate edits do not reprice it.
func (h *HamaliHandler) Create(c *gin.Context) {
	var req dto.CreateHamaliEntryRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	entry, err := h.service.CreateEntry(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedObject(c, entry)
}

// List handles GET /hamali/entries.
func (h *HamaliHandler) List(c *gin.Context) {
	var query dto.HamaliListQuery
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

// Get handles GET /hamali/entries/:id.
func (h *HamaliHandler) Get(c *gin.Context) {
	entryID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	entry, err := h.service.GetByID(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, entry)
}
