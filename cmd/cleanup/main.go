// Package main provides a CLI for recovery-backed movement cleanup.
// Usage: cleanup run --reason "bad import" <movement-id> [<movement-id>...]
//        cleanup restore <batch-id>
//        cleanup report [--limit N]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
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
	case "run":
		runCleanup()
	case "restore":
		runRestore()
	case "report":
		runReport()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Millstock Cleanup CLI

Hard-deletes invalid historical movements. Every deleted row is
snapshotted into the recovery store in the same transaction, and the
printed batch id restores the whole batch later.

Usage:
  cleanup <command> [options]

Commands:
  run      Delete movements (snapshot first); requires --reason
  restore  Re-insert a snapshot batch; live rows always win
  report   Scan for data inconsistencies without changing anything
  help     Show this help

Examples:
  cleanup run --reason "duplicate import" 018f2c0a-... 018f2c0b-...
  cleanup restore 018f2d11-...
  cleanup report --limit 1000

Configuration comes from the MILLSTOCK_* environment (MILLSTOCK_DB_HOST
and friends), same as the server.`)
}

// setup wires the maintenance service with an admin identity; cleanup and
// restore are admin-gated in the service itself.
func setup() (context.Context, *maintenance.Service, func()) {
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
		Email:  "cleanup@millstock.local",
		Role:   appctx.RoleAdmin,
	})

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.ConnectionString()))
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}

	txManager := postgres.NewTxManager(pool)
	gen := numerator.New(pool)

	ledgerService := stockledger.NewService(register_repo.NewLedgerRepo(txManager))
	rateService := hamalirate.NewService(catalog_repo.NewHamaliRateRepo(txManager), txManager, gen)
	hamaliService := hamali.NewService(document_repo.NewHamaliEntryRepo(txManager), rateService, gen, txManager)

	recoveryStore, err := postgres.NewRecoveryStore(txManager)
	if err != nil {
		pool.Close()
		fmt.Printf("Error initializing recovery store: %v\n", err)
		os.Exit(1)
	}

	svc := maintenance.NewService(
		document_repo.NewStockMovementRepo(txManager),
		ledgerService,
		recoveryStore,
		hamaliService,
		posting.NewEngine(ledgerService, txManager),
		txManager,
	)

	return ctx, svc, pool.Close
}

func runCleanup() {
	var reason string
	var rawIDs []string

	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--reason" {
			if i+1 < len(os.Args) {
				reason = os.Args[i+1]
				i++
			}
			continue
		}
		rawIDs = append(rawIDs, os.Args[i])
	}

	if reason == "" {
		fmt.Println("Error: --reason is required; it is stored with the snapshot batch")
		os.Exit(1)
	}
	if len(rawIDs) == 0 {
		fmt.Println("Error: at least one movement id is required")
		fmt.Println("Usage: cleanup run --reason <text> <movement-id> [<movement-id>...]")
		os.Exit(1)
	}

	movementIDs := make([]id.ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		parsed, err := id.Parse(raw)
		if err != nil {
			fmt.Printf("Error: invalid movement id %q: %v\n", raw, err)
			os.Exit(1)
		}
		movementIDs = append(movementIDs, parsed)
	}

	ctx, svc, closePool := setup()
	defer closePool()

	fmt.Printf("Cleaning up %d movement(s)...\n", len(movementIDs))

	result, err := svc.Cleanup(ctx, movementIDs, reason)
	if err != nil {
		fmt.Printf("✗ Failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Deleted %d movement(s) (%d unposted first)\n", result.Deleted, result.Unposted)
	fmt.Printf("  Recovery batch: %s\n", result.BatchID)
	fmt.Printf("  Restore with: cleanup restore %s\n", result.BatchID)
}

func runRestore() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: cleanup restore <batch-id>")
		os.Exit(1)
	}

	batchID, err := id.Parse(os.Args[2])
	if err != nil {
		fmt.Printf("Error: invalid batch id %q: %v\n", os.Args[2], err)
		os.Exit(1)
	}

	ctx, svc, closePool := setup()
	defer closePool()

	fmt.Printf("Restoring batch %s...\n", batchID)

	result, err := svc.Restore(ctx, batchID)
	if err != nil {
		fmt.Printf("✗ Failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Restored %d movement(s), %d reposted, %d skipped (still alive)\n",
		result.Restored, result.Reposted, result.SkippedAlive)
}

func runReport() {
	limit := 0
	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--limit" && i+1 < len(os.Args) {
			n, err := strconv.Atoi(os.Args[i+1])
			if err != nil || n < 0 {
				fmt.Printf("Error: invalid --limit value %q\n", os.Args[i+1])
				os.Exit(1)
			}
			limit = n
			i++
		}
	}

	ctx, svc, closePool := setup()
	defer closePool()

	report, err := svc.ConsistencyReport(ctx, limit)
	if err != nil {
		fmt.Printf("✗ Failed: %v\n", err)
		os.Exit(1)
	}

	if report.Total() == 0 {
		fmt.Println("✓ No inconsistencies found")
		return
	}

	printIssues("Approved paltis with null source bags", report.MissingSourceBags)
	printIssues("Ledger legs whose movement is missing", report.OrphanLegs)
	printIssues("Paltis whose stored leg keys drifted", report.KeyMismatches)

	fmt.Printf("\n%d finding(s). Findings are reported only; fix them via backfill or cleanup.\n", report.Total())
}

func printIssues(title string, issues []maintenance.ReportIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		ref := issue.Number
		if ref == "" && issue.MovementID != nil {
			ref = issue.MovementID.String()
		}
		fmt.Printf("  %s  %s\n", ref, issue.Detail)
	}
}
