package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain/auth"
	"millstock/internal/infrastructure/http/v1/dto"
)

// AuthHandler serves login, token refresh and operator management.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, operator, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.LoginResponse{Tokens: tokens, Operator: operator})
}

// Refresh handles POST /auth/refresh - rotates the refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, tokens)
}

// Logout handles POST /auth/logout - revokes every session of the caller.
func (h *AuthHandler) Logout(c *gin.Context) {
	operatorID, ok := h.callerID(c)
	if !ok {
		return
	}

	if err := h.service.Logout(c.Request.Context(), operatorID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "logged out")
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	operatorID, ok := h.callerID(c)
	if !ok {
		return
	}

	operator, err := h.service.GetByID(c.Request.Context(), operatorID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, operator)
}

// CreateOperator handles POST /auth/operators (admin).
func (h *AuthHandler) CreateOperator(c *gin.Context) {
	var req dto.CreateOperatorRequest
	if !h.BindJSON(c, &req) {
		return
	}

	operator, err := h.service.CreateOperator(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.CreatedObject(c, operator)
}

// ListOperators handles GET /auth/operators (admin).
func (h *AuthHandler) ListOperators(c *gin.Context) {
	filter := auth.OperatorFilter{
		Search: c.Query("search"),
		Role:   c.Query("role"),
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if active := c.Query("isActive"); active != "" {
		val := active == "true"
		filter.IsActive = &val
	}

	operators, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{
		Items:      operators,
		TotalCount: int64(total),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// GetOperator handles GET /auth/operators/:id (admin).
func (h *AuthHandler) GetOperator(c *gin.Context) {
	operatorID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	operator, err := h.service.GetByID(c.Request.Context(), operatorID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, operator)
}

// SetRole handles PUT /auth/operators/:id/role (admin).
func (h *AuthHandler) SetRole(c *gin.Context) {
	operatorID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.SetRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetRole(c.Request.Context(), operatorID, req.Role); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "role updated")
}

// Deactivate handles POST /auth/operators/:id/deactivate (admin).
// Deactivation also revokes the operator's sessions.
func (h *AuthHandler) Deactivate(c *gin.Context) {
	operatorID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), operatorID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "operator deactivated")
}

func (h *AuthHandler) callerID(c *gin.Context) (id.ID, bool) {
	raw := h.GetUserID(c)
	if raw == "" {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return id.Nil(), false
	}
	operatorID, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return id.Nil(), false
	}
	return operatorID, true
}
