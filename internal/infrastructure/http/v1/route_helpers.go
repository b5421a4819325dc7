// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
// All catalog handlers must implement these methods.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	SetDeletionMark(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
// Reads are open to any operator; mutations are admin-only.
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	admin := middleware.RequireAdmin()

	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.POST("", admin, handler.Create)
	group.PUT("/:id", admin, handler.Update)
	group.DELETE("/:id", admin, handler.Delete)
	group.POST("/:id/deletion-mark", admin, handler.SetDeletionMark)
}
