// Package main provides a CLI tool for seeding the database with initial data:
// the bootstrap admin operator, and optionally a starter set of catalog rows
// for a fresh mill installation.
package main

import (
	"context"
	"fmt"
	"os"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/types"
	"millstock/internal/domain/auth"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/infrastructure/numerator"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/auth_repo"
	"millstock/internal/infrastructure/storage/postgres/catalog_repo"
	"millstock/pkg/config"
	"millstock/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)

	// Service-level admin gates apply to offline tools too; the seeder runs
	// as a synthetic system admin.
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		UserID: "system",
		Email:  "seed@millstock.local",
		Role:   appctx.RoleAdmin,
	})

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	gen := numerator.New(pool)

	operatorRepo := auth_repo.NewOperatorRepo(txManager)
	// The seeder never issues tokens, so no JWT service is wired.
	authService := auth.NewService(operatorRepo, auth_repo.NewTokenRepo(txManager), txManager, nil, auth.DefaultServiceConfig())

	if err := seedAdminOperator(ctx, authService, operatorRepo, log); err != nil {
		log.Fatalw("failed to seed admin operator", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedCatalogs(ctx, txManager, gen, log); err != nil {
			log.Fatalw("failed to seed catalog data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedAdminOperator creates the first admin account. Every operator-creating
// API route requires an existing admin, so the bootstrap one comes from here.
func seedAdminOperator(ctx context.Context, svc *auth.Service, repo *auth_repo.OperatorRepo, log *logger.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@millstock.local"
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin123!"
	}

	exists, err := repo.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin exists: %w", err)
	}
	if exists {
		log.Infow("admin operator already exists", "email", email)
		return nil
	}

	op, err := svc.CreateOperator(ctx, auth.CreateOperatorInput{
		Email:    email,
		Password: password,
		Name:     "System Admin",
		Role:     appctx.RoleAdmin,
	})
	if err != nil {
		return err
	}

	log.Infow("admin operator created", "email", email, "operator_id", op.ID)
	return nil
}

func seedCatalogs(ctx context.Context, txManager *postgres.TxManager, gen *numerator.Service, log *logger.Logger) error {
	log.Info("seeding catalog data...")

	locationService := location.NewService(catalog_repo.NewLocationRepo(txManager), txManager, gen)
	packagingService := packaging.NewService(catalog_repo.NewPackagingRepo(txManager), txManager, gen)
	rateService := hamalirate.NewService(catalog_repo.NewHamaliRateRepo(txManager), txManager, gen)

	// 1. Locations. Codes are canonical and become the location slot of
	// every stock key, so they are fixed here rather than auto-numbered.
	locations := []struct {
		code string
		name string
		kind location.Kind
	}{
		{"MILL", "Mill floor", location.KindMill},
		{"GODOWN-1", "Godown 1", location.KindGodown},
		{"GODOWN-2", "Godown 2", location.KindGodown},
		{"KUNCHINITTU", "Kunchinittu heap", location.KindKunchinittu},
	}

	for _, l := range locations {
		_, err := locationService.Resolve(ctx, l.code)
		if err == nil {
			continue
		}
		if !apperror.IsNotFound(err) {
			return fmt.Errorf("check location %s: %w", l.code, err)
		}

		if err := locationService.Create(ctx, location.NewLocation(l.code, l.name, l.kind)); err != nil {
			log.Warnw("failed to seed location", "code", l.code, "error", err)
			continue
		}
		log.Infow("location seeded", "code", l.code)
	}

	// 2. Packagings: one row per (brand, bag weight). 75kg gunnies carry
	// paddy in; branded 25/26kg bags carry milled rice out.
	packagings := []struct {
		brand string
		kg    int64
		name  string
	}{
		{"paddy gunny", 75, "Paddy gunny 75kg"},
		{"sona", 25, "Sona 25kg"},
		{"sona", 26, "Sona 26kg"},
		{"jaya", 25, "Jaya 25kg"},
		{"rgl classic", 26, "RGL Classic 26kg"},
	}

	for _, p := range packagings {
		kg := types.NewQuantityFromInt(p.kg)
		_, err := packagingService.Resolve(ctx, p.brand, kg.String())
		if err == nil {
			continue
		}
		if !apperror.IsNotFound(err) {
			return fmt.Errorf("check packaging %s %dkg: %w", p.brand, p.kg, err)
		}

		if err := packagingService.Create(ctx, packaging.NewPackaging("", p.name, p.brand, kg)); err != nil {
			log.Warnw("failed to seed packaging", "brand", p.brand, "kg", p.kg, "error", err)
			continue
		}
		log.Infow("packaging seeded", "brand", p.brand, "kg", p.kg)
	}

	// 3. Hamali rate bands. One open-ended band per work type is enough to
	// start pricing entries; real tariffs get added over the API.
	rates := []*hamalirate.HamaliRate{
		newSeedRate("Paddy unloading", "paddy unloading", hamalirate.RateTypeCDL, "5.50", "2.00"),
		newSeedRate("Rice loading", "rice loading", hamalirate.RateTypeGeneral, "4.00", "1.50"),
	}

	for _, r := range rates {
		if err := rateService.Create(ctx, r); err != nil {
			// A band overlap means a tariff for this work type is already
			// in place; re-runs land here.
			log.Infow("hamali rate already covered", "work_type", r.WorkType, "error", err)
			continue
		}
		log.Infow("hamali rate seeded", "work_type", r.WorkType)
	}

	log.Info("catalog data seeded successfully")
	return nil
}

// newSeedRate builds an open-ended per-bag tariff band.
func newSeedRate(name, workType, rateType, baseRate, hamaliFee string) *hamalirate.HamaliRate {
	r := hamalirate.NewHamaliRate("", name, workType, rateType)
	r.BaseRate = types.MustMoney(baseRate)
	r.Hamali = types.MustMoney(hamaliFee)
	return r
}
