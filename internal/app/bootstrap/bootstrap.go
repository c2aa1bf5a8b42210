package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	rewardservice "questline/contexts/player-progression/reward-service"
	ledgeradapter "questline/contexts/player-progression/reward-service/adapters/ledger"
	postgresadapter "questline/contexts/player-progression/reward-service/adapters/postgres"
	"questline/contexts/player-progression/reward-service/adapters/ranking"
	"questline/contexts/player-progression/reward-service/domain/entities"
	"questline/internal/platform/config"
	"questline/internal/platform/db"
	"questline/internal/platform/httpserver"
	"questline/internal/platform/realtime"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// APIApp serves the HTTP surface and owns the in-memory ranking views, so
// the rollover and reconciler workers run here rather than in the worker
// process.
type APIApp struct {
	server            *httpserver.Server
	postgres          *db.Postgres
	rollover          func(context.Context) error
	reconcile         func(context.Context) error
	rolloverInterval  time.Duration
	reconcileInterval time.Duration
	logger            *slog.Logger
}

// WorkerApp drains the durable sync outbox into the external ledger.
type WorkerApp struct {
	postgres     *db.Postgres
	relay        func(context.Context) error
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	rankings := ranking.NewStore()
	hub := realtime.NewHub(logger)
	ledger := ledgeradapter.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout, logger)

	module := rewardservice.NewModule(rewardservice.Dependencies{
		Catalog:            entities.NewActionCatalog(entities.DefaultActions()),
		Profiles:           repo,
		Guard:              repo,
		Queue:              repo,
		Ledger:             ledger,
		Rankings:           rankings,
		Snapshots:          repo,
		Notifier:           hub,
		Idempotency:        repo,
		Clock:              postgresadapter.SystemClock{},
		IDGenerator:        postgresadapter.UUIDGenerator{},
		RankShiftThreshold: cfg.RankShiftThreshold,
		TopCutoff:          cfg.TopCutoff,
		QueueHighWater:     cfg.QueueHighWater,
		SnapshotTop:        cfg.SnapshotTop,
		LedgerBatchSize:    cfg.LedgerBatchSize,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		Logger:             logger,
	})

	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:            server,
		postgres:          pg,
		rollover:          module.Rollover.RunOnce,
		reconcile:         module.Reconciler.RunOnce,
		rolloverInterval:  cfg.RolloverInterval,
		reconcileInterval: cfg.ReconcileInterval,
		logger:            logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	ledger := ledgeradapter.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout, logger)

	relay := rewardservice.NewModule(rewardservice.Dependencies{
		Catalog:         entities.NewActionCatalog(entities.DefaultActions()),
		Profiles:        repo,
		Guard:           repo,
		Queue:           repo,
		Ledger:          ledger,
		Snapshots:       repo,
		Idempotency:     repo,
		Clock:           postgresadapter.SystemClock{},
		IDGenerator:     postgresadapter.UUIDGenerator{},
		LedgerBatchSize: cfg.LedgerBatchSize,
		Logger:          logger,
	}).Relay

	return &WorkerApp{
		postgres:     pg,
		relay:        relay.RunOnce,
		pollInterval: cfg.RelayInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	go a.runLoop(ctx, "rollover", a.rolloverInterval, a.rollover)
	go a.runLoop(ctx, "reconciler", a.reconcileInterval, a.reconcile)

	return a.server.Start()
}

// runLoop polls one worker; failures are logged and retried on the next
// tick, they never take the API process down.
func (a *APIApp) runLoop(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil {
			a.logger.Error("background worker run failed",
				"event", "bootstrap_worker_run_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"worker", name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.relay(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
