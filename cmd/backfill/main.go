// Package main provides a CLI for the offline snapshot backfills.
// Usage: backfill source-bags [--limit N]
//        backfill hamali [--limit N]
//        backfill all [--limit N]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	appctx "millstock/internal/core/context"
	"millstock/internal/domain/catalogs/hamalirate"
	"millstock/internal/domain/hamali"
	"millstock/internal/domain/maintenance"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
	"millstock/internal/infrastructure/numerator"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/catalog_repo"
	"millstock/internal/infrastructure/storage/postgres/document_repo"
	"millstock/internal/infrastructure/storage/postgres/register_repo"
	"millstock/pkg/config"
	"millstock/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "source-bags":
		run(runSourceBags)
	case "hamali":
		run(runHamali)
	case "all":
		run(func(ctx context.Context, svc *maintenance.Service, limit int) error {
			if err := runSourceBags(ctx, svc, limit); err != nil {
				return err
			}
			return runHamali(ctx, svc, limit)
		})
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Millstock Backfill CLI

Repairs null snapshot columns on historical rows. Only null values are
ever written, so every command is safe to re-run.

Usage:
  backfill <command> [options]

Commands:
  source-bags  Derive source bag counts for approved paltis where null
  hamali       Price hamali entries whose amount is still null
  all          Run both backfills
  help         Show this help

Options:
  --limit N    Rows scanned per pass (default 500)

Configuration comes from the MILLSTOCK_* environment (MILLSTOCK_DB_HOST
and friends), same as the server.`)
}

func parseLimit() int {
	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--limit" && i+1 < len(os.Args) {
			n, err := strconv.Atoi(os.Args[i+1])
			if err != nil || n < 0 {
				fmt.Printf("Error: invalid --limit value %q\n", os.Args[i+1])
				os.Exit(1)
			}
			return n
		}
	}
	return 0
}

// run wires the maintenance service and hands it to one command.
func run(cmd func(ctx context.Context, svc *maintenance.Service, limit int) error) {
	limit := parseLimit()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		UserID: "system",
		Email:  "backfill@millstock.local",
		Role:   appctx.RoleAdmin,
	})

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc, err := buildMaintenanceService(pool)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if err := cmd(ctx, svc, limit); err != nil {
		fmt.Printf("✗ Failed: %v\n", err)
		os.Exit(1)
	}
}

func buildMaintenanceService(pool *postgres.Pool) (*maintenance.Service, error) {
	txManager := postgres.NewTxManager(pool)
	gen := numerator.New(pool)

	ledgerService := stockledger.NewService(register_repo.NewLedgerRepo(txManager))
	rateService := hamalirate.NewService(catalog_repo.NewHamaliRateRepo(txManager), txManager, gen)
	hamaliService := hamali.NewService(document_repo.NewHamaliEntryRepo(txManager), rateService, gen, txManager)

	recoveryStore, err := postgres.NewRecoveryStore(txManager)
	if err != nil {
		return nil, fmt.Errorf("initialize recovery store: %w", err)
	}

	return maintenance.NewService(
		document_repo.NewStockMovementRepo(txManager),
		ledgerService,
		recoveryStore,
		hamaliService,
		posting.NewEngine(ledgerService, txManager),
		txManager,
	), nil
}

func runSourceBags(ctx context.Context, svc *maintenance.Service, limit int) error {
	fmt.Println("Backfilling palti source bags...")

	result, err := svc.BackfillSourceBags(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Done: %d scanned, %d updated, %d skipped\n",
		result.Scanned, result.Updated, len(result.Skipped))
	printSkipped(toSkippedRows(result.Skipped))
	return nil
}

func runHamali(ctx context.Context, svc *maintenance.Service, limit int) error {
	fmt.Println("Backfilling hamali entry amounts...")

	result, err := svc.BackfillHamaliAmounts(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Done: %d scanned, %d updated, %d skipped\n",
		result.Scanned, result.Updated, len(result.Skipped))

	rows := make([]skippedRow, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		ref := s.Number
		if ref == "" {
			ref = s.EntryID.String()
		}
		rows = append(rows, skippedRow{ref: ref, reason: s.Reason})
	}
	printSkipped(rows)
	return nil
}

type skippedRow struct {
	ref    string
	reason string
}

func toSkippedRows(items []maintenance.Inconsistency) []skippedRow {
	rows := make([]skippedRow, 0, len(items))
	for _, s := range items {
		ref := s.Number
		if ref == "" {
			ref = s.MovementID.String()
		}
		rows = append(rows, skippedRow{ref: ref, reason: s.Reason})
	}
	return rows
}

// printSkipped lists the rows a pass refused to touch; they need manual
// attention, not another run.
func printSkipped(rows []skippedRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Println("\nRows needing manual attention:")
	for _, r := range rows {
		fmt.Printf("  %s  %s\n", r.ref, r.reason)
	}
}
