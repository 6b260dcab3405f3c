// Package main is the entry point for the storeflow background worker.
// It relays outbox events and purges expired idempotency keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storeflow/internal/infrastructure/metrics"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/pkg/config"
	"storeflow/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFLOW_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting storeflow worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	var registry *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		metricsServer = &http.Server{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	worker := NewWorker(
		postgres.NewOutboxRelay(txManager, cfg.Worker.OutboxBatchSize, postgres.LogHandler{}),
		postgres.NewIdempotencyStore(txManager, 0),
		registry,
		cfg.Worker,
		log,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	log.Info("worker stopped")
}

// Relay delivers pending outbox messages.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
}

// KeyJanitor purges expired idempotency keys.
type KeyJanitor interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Worker runs the periodic jobs.
type Worker struct {
	relay   Relay
	keys    KeyJanitor
	metrics *metrics.Metrics
	cfg     config.WorkerConfig
	log     *logger.Logger
}

func NewWorker(relay Relay, keys KeyJanitor, m *metrics.Metrics, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = 2 * time.Second
	}
	if cfg.IdempotencyInterval <= 0 {
		cfg.IdempotencyInterval = time.Hour
	}
	return &Worker{
		relay:   relay,
		keys:    keys,
		metrics: m,
		cfg:     cfg,
		log:     log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	outboxTicker := time.NewTicker(w.cfg.OutboxInterval)
	defer outboxTicker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.IdempotencyInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-outboxTicker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.moveFailed(ctx)
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	// drain while full batches keep coming
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if w.metrics != nil && n > 0 {
			w.metrics.OutboxDelivered(n)
		}
		if n == 0 || n < w.cfg.OutboxBatchSize {
			return
		}
		w.log.Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) moveFailed(ctx context.Context) {
	n, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		w.log.Errorw("move failed outbox messages", "error", err)
		return
	}
	if n > 0 {
		w.log.Warnw("moved failed outbox messages to DLQ", "count", n)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
