// Package main is the entry point for the millstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"millstock/internal/domain/approval"
	"millstock/internal/domain/auth"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/domain/hamali"
	"millstock/internal/domain/maintenance"
	"millstock/internal/domain/movements"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
	"millstock/internal/infrastructure/cache"
	v1 "millstock/internal/infrastructure/http/v1"
	"millstock/internal/infrastructure/http/v1/handlers"
	"millstock/internal/infrastructure/numerator"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/auth_repo"
	"millstock/internal/infrastructure/storage/postgres/catalog_repo"
	"millstock/internal/infrastructure/storage/postgres/document_repo"
	"millstock/internal/infrastructure/storage/postgres/register_repo"
	"millstock/pkg/config"
	"millstock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting millstock server", "env", cfg.App.Env)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.ConnectionString(),
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// Numbering runs on the pool directly, outside request transactions.
	gen := numerator.New(pool)

	// --- Auth ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	jwtCfg.AccessTokenTTL = cfg.JWT.AccessTTL
	jwtService := auth.NewJWTService(jwtCfg)

	authCfg := auth.DefaultServiceConfig()
	authCfg.RefreshTokenExpiry = cfg.JWT.RefreshTTL
	authService := auth.NewService(
		auth_repo.NewOperatorRepo(txManager),
		auth_repo.NewTokenRepo(txManager),
		txManager,
		jwtService,
		authCfg,
	)

	// --- Catalogs ---
	packagingService := packaging.NewService(catalog_repo.NewPackagingRepo(txManager), txManager, gen)
	locationService := location.NewService(catalog_repo.NewLocationRepo(txManager), txManager, gen)
	rateService := hamalirate.NewService(catalog_repo.NewHamaliRateRepo(txManager), txManager, gen)

	// --- Ledger, optionally behind the Redis balance cache ---
	ledgerService := stockledger.NewService(register_repo.NewLedgerRepo(txManager))

	var (
		postingLedger posting.Ledger          = ledgerService
		maintLedger   maintenance.LedgerStore = ledgerService
		stockReader   handlers.StockReader    = ledgerService
		rdb           *redis.Client
	)
	if cfg.Redis.Enabled() {
		rdb, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// The cache is an optimization; a dead Redis must not stop startup.
			log.Warnw("balance cache disabled", "addr", cfg.Redis.Addr, "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
			balanceCache := cache.NewBalanceCache(ledgerService, rdb, cfg.Redis.TTL)
			postingLedger = balanceCache
			maintLedger = balanceCache
			stockReader = balanceCache
			log.Infow("balance cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		}
	}

	postingEngine := posting.NewEngine(postingLedger, txManager)

	// --- Approval policy ---
	policy, err := approval.NewPolicy(cfg.Approval.AdminTierExpr)
	if err != nil {
		log.Fatalw("invalid approval policy", "error", err)
	}
	log.Infow("approval policy compiled", "expr", policy.Expr())

	// --- Movements ---
	movementRepo := document_repo.NewStockMovementRepo(txManager)
	movementService := movements.NewService(
		movementRepo,
		packagingService,
		locationService,
		ledgerService,
		postingEngine,
		policy,
		gen,
		txManager,
		txManager,
		postgres.NewOutboxPublisher(txManager),
	)

	// --- Hamali ---
	hamaliService := hamali.NewService(document_repo.NewHamaliEntryRepo(txManager), rateService, gen, txManager)

	// --- Maintenance ---
	recoveryStore, err := postgres.NewRecoveryStore(txManager)
	if err != nil {
		log.Fatalw("failed to initialize recovery store", "error", err)
	}
	maintenanceService := maintenance.NewService(
		movementRepo,
		maintLedger,
		recoveryStore,
		hamaliService,
		postingEngine,
		txManager,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:               pool,
		Logger:             log,
		Redis:              rdb,
		JWTValidator:       jwtService,
		AuthService:        authService,
		MovementService:    movementService,
		Ledger:             stockReader,
		PackagingService:   packagingService,
		LocationService:    locationService,
		HamaliRateService:  rateService,
		HamaliService:      hamaliService,
		MaintenanceService: maintenanceService,
		IdempotencyStore:   postgres.NewIdempotencyStore(pool, txManager, cfg.Worker.IdempotencyTTL),
	})

	// --- HTTP server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
