package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/infrastructure/http/v1/dto"
)

// HamaliRateHandler serves the rate card. Rates are reference rows that
// new entries snapshot from; superseding a rate means creating a new row,
// so the surface is list + create only.
type HamaliRateHandler struct {
	*BaseHandler
	service *hamalirate.Service
}

// NewHamaliRateHandler creates a new hamali rate handler.
func NewHamaliRateHandler(base *BaseHandler, service *hamalirate.Service) *HamaliRateHandler {
	return &HamaliRateHandler{BaseHandler: base, service: service}
}

// Create handles POST /catalog/hamali-rates.
func (h *HamaliRateHandler) Create(c *gin.Context) {
	var req dto.CreateHamaliRateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rate := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), rate); err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedObject(c, rate)
}

// List handles GET /catalog/hamali-rates.
func (h *HamaliRateHandler) List(c *gin.Context) {
	filter := domain.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Limit = h.ParseIntQuery(c, "limit", filter.Limit)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.IncludeDeleted = c.Query("includeDeleted") == "true"

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

// Get handles GET /catalog/hamali-rates/:id.
func (h *HamaliRateHandler) Get(c *gin.Context) {
	rateID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	rate, err := h.service.GetByID(c.Request.Context(), rateID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, rate)
}
