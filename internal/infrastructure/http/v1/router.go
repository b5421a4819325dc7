// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"millstock/internal/domain/auth"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/domain/hamali"
	"millstock/internal/domain/maintenance"
	"millstock/internal/domain/movements"
	"millstock/internal/infrastructure/http/v1/handlers"
	"millstock/internal/infrastructure/http/v1/middleware"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/pkg/logger"
)

// RouterConfig carries the wired services. Everything is constructed once
// in main; the router only binds routes and middleware.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	// Redis is optional; nil disables the cache readiness check.
	Redis *redis.Client

	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service

	MovementService *movements.Service

	// Ledger serves balance reads; either the ledger service itself or
	// the Redis decorator over it.
	Ledger handlers.StockReader

	PackagingService  *packaging.Service
	LocationService   *location.Service
	HamaliRateService *hamalirate.Service
	HamaliService     *hamali.Service

	MaintenanceService *maintenance.Service

	// IdempotencyStore is optional; nil disables replay protection.
	IdempotencyStore *postgres.IdempotencyStore
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	{
		registerAuthRoutes(v1, base, cfg)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		registerMovementRoutes(protected, base, cfg)
		registerStockRoutes(protected, base, cfg)
		registerCatalogRoutes(protected, base, cfg)
		registerHamaliRoutes(protected, base, cfg)
		registerMaintenanceRoutes(protected, base, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication and operator management.
func registerAuthRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(base, cfg.AuthService)

	public := rg.Group("/auth")
	{
		public.POST("/login", authHandler.Login)
		public.POST("/refresh", authHandler.Refresh)
	}

	protected := rg.Group("/auth")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	{
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)

		operators := protected.Group("/operators")
		operators.Use(middleware.RequireAdmin())
		{
			operators.GET("", authHandler.ListOperators)
			operators.POST("", authHandler.CreateOperator)
			operators.GET("/:id", authHandler.GetOperator)
			operators.PUT("/:id/role", authHandler.SetRole)
			operators.POST("/:id/deactivate", authHandler.Deactivate)
		}
	}
}

// registerMovementRoutes registers the movement journal.
func registerMovementRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewMovementHandler(base, cfg.MovementService)

	group := rg.Group("/movements")
	{
		group.POST("", handler.Create)
		group.POST("/batch", handler.CreateBatch)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.POST("/:id/approve", handler.Approve)
		group.POST("/:id/admin-approve", middleware.RequireAdmin(), handler.AdminApprove)
		group.POST("/:id/reject", handler.Reject)
		group.DELETE("/:id", middleware.RequireAdmin(), handler.Delete)
	}
}

// registerStockRoutes registers the derived balance views.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewStockHandler(base, cfg.Ledger)

	group := rg.Group("/stock")
	{
		group.GET("/balance", handler.Balance)
		group.GET("/balances", handler.Balances)
		group.GET("/movements", handler.Movements)
	}
}

// registerCatalogRoutes registers reference data endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")

	RegisterCatalogRoutes(catalogs.Group("/packagings"), handlers.NewPackagingHandler(base, cfg.PackagingService))
	RegisterCatalogRoutes(catalogs.Group("/locations"), handlers.NewLocationHandler(base, cfg.LocationService))

	rateHandler := handlers.NewHamaliRateHandler(base, cfg.HamaliRateService)
	rates := catalogs.Group("/hamali-rates")
	{
		rates.GET("", rateHandler.List)
		rates.GET("/:id", rateHandler.Get)
		rates.POST("", middleware.RequireAdmin(), rateHandler.Create)
	}
}

// registerHamaliRoutes registers labor charge entries.
func registerHamaliRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewHamaliHandler(base, cfg.HamaliService)

	group := rg.Group("/hamali/entries")
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
	}
}

// registerMaintenanceRoutes registers the admin repair surface.
func registerMaintenanceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.MaintenanceService == nil {
		return
	}

	handler := handlers.NewMaintenanceHandler(base, cfg.MaintenanceService)

	group := rg.Group("/maintenance")
	group.Use(middleware.RequireAdmin())
	{
		group.POST("/backfill/source-bags", handler.BackfillSourceBags)
		group.POST("/backfill/hamali-amounts", handler.BackfillHamaliAmounts)
		group.POST("/cleanup", handler.Cleanup)
		group.POST("/restore/:batchID", handler.Restore)
		group.GET("/consistency", handler.Consistency)
	}
}
