// Package main is the entry point for the millstock background worker:
// outbox relay to Kafka plus hourly housekeeping.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"millstock/internal/infrastructure/broker"
	"millstock/internal/infrastructure/storage/postgres"
	"millstock/internal/infrastructure/storage/postgres/auth_repo"
	"millstock/pkg/config"
	"millstock/pkg/logger"
)

// outboxBatchSize bounds one relay pass.
const outboxBatchSize = 100

// outboxRetention keeps published rows around long enough to debug
// delivery questions before pruning.
const outboxRetention = 7 * 24 * time.Hour

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting millstock worker", "env", cfg.App.Env)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.ConnectionString(),
		MaxConns: int32(cfg.DB.MaxConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	// Without brokers the outbox is drained locally so it never grows
	// unbounded on single-node deployments.
	var handler postgres.OutboxHandler = broker.Discard{}
	if cfg.Kafka.Enabled() {
		publisher := broker.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		handler = publisher
		log.Infow("kafka relay enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		log.Info("no kafka brokers configured, outbox messages will be marked published locally")
	}

	worker := &Worker{
		relay:       postgres.NewOutboxRelay(pool.Pool, outboxBatchSize, handler),
		tokens:      auth_repo.NewTokenRepo(txManager),
		idempotency: postgres.NewIdempotencyStore(pool, txManager, cfg.Worker.IdempotencyTTL),
		cfg:         cfg.Worker,
		log:         log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the outbox and runs periodic housekeeping.
type Worker struct {
	relay       *postgres.OutboxRelay
	tokens      *auth_repo.TokenRepo
	idempotency *postgres.IdempotencyStore
	cfg         config.WorkerConfig
	log         *logger.Logger
}

// Run loops until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	pollTicker := time.NewTicker(w.cfg.OutboxInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	delivered, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		w.log.Errorw("outbox pass failed", "error", err)
		return
	}
	if delivered > 0 {
		w.log.Debugw("outbox batch delivered", "count", delivered)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if pruned, err := w.relay.PruneDelivered(ctx, outboxRetention); err != nil {
		w.log.Errorw("outbox prune failed", "error", err)
	} else if pruned > 0 {
		w.log.Infow("pruned delivered outbox messages", "count", pruned)
	}

	if removed, err := w.tokens.CleanupExpiredTokens(ctx); err != nil {
		w.log.Errorw("token cleanup failed", "error", err)
	} else if removed > 0 {
		w.log.Infow("cleaned up expired refresh tokens", "count", removed)
	}

	if removed, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}
