// Package main is the entry point for the storeflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/auth"
	"storeflow/internal/domain/scope"
	"storeflow/internal/domain/workflow"
	v1 "storeflow/internal/infrastructure/http/v1"
	"storeflow/internal/infrastructure/metrics"
	"storeflow/internal/infrastructure/numerator"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/internal/infrastructure/storage/postgres/ledger_repo"
	"storeflow/internal/infrastructure/storage/postgres/migrations"
	"storeflow/internal/infrastructure/storage/postgres/movement_repo"
	"storeflow/internal/infrastructure/storage/postgres/reference_repo"
	"storeflow/pkg/config"
	"storeflow/pkg/logger"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const devJWTSecret = "storeflow-dev-secret"

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

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting storeflow server", "version", version, "env", cfg.App.Env)

	// --- Database ---
	if cfg.Database.MigrateOnStart {
		if err := migrations.Up(ctx, cfg.Database.URL); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("migrations applied")
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	postgres.LogPoolStats(ctx, pool)

	txManager := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	// --- Workflow ---
	policy, err := workflow.NewPolicy(cfg.Workflow.PolicyOverrides())
	if err != nil {
		log.Fatalw("invalid workflow policy", "error", err)
	}

	journal, err := postgres.NewJournal(txManager, cfg.Workflow.JournalCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create journal", "error", err)
	}

	references := reference_repo.NewRepo(txManager)
	ledger := ledger_repo.NewLedger(txManager)

	var observer approval.Observer
	var registry *metrics.Metrics
	if cfg.Metrics.Enabled {
		registry = metrics.New()
		observer = registry
	}

	service := approval.NewService(approval.Deps{
		Repo:       movement_repo.NewRepo(txManager),
		TxManager:  txManager,
		Engine:     workflow.NewEngine(policy),
		Resolver:   scope.NewResolver(),
		Numerator:  numerator.NewFromTxManager(txManager),
		Poster:     ledger,
		Journal:    journal,
		Events:     postgres.NewOutboxPublisher(txManager),
		References: references,
		Observer:   observer,
	})

	// --- Auth ---
	secret := cfg.JWT.Secret
	if secret == "" {
		log.Warn("jwt.secret is empty, using the development secret")
		secret = devJWTSecret
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         secret,
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: cfg.JWT.TTL,
	})

	var idempotency *postgres.IdempotencyStore
	if cfg.HTTP.IdempotencyEnabled {
		idempotency = postgres.NewIdempotencyStore(txManager, 0)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Movements:    service,
		References:   references,
		Balances:     ledger,
		DB:           pool,
		Idempotency:  idempotency,
		Metrics:      registry,
		Version:      version,
		Development:  cfg.App.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
