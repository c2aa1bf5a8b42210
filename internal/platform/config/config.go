package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	LedgerBaseURL   string
	LedgerTimeout   time.Duration
	LedgerBatchSize int
	RelayInterval   time.Duration

	RolloverInterval   time.Duration
	ReconcileInterval  time.Duration
	RankShiftThreshold int
	TopCutoff          int
	QueueHighWater     int
	SnapshotTop        int
	IdempotencyTTL     time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "questline"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	ledgerBaseURL := os.Getenv("LEDGER_BASE_URL")
	if ledgerBaseURL == "" {
		ledgerBaseURL = "http://localhost:9090"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		LedgerBaseURL:   ledgerBaseURL,
		LedgerTimeout:   envDuration("LEDGER_TIMEOUT", 20*time.Second),
		LedgerBatchSize: envInt("LEDGER_BATCH_SIZE", 100),
		RelayInterval:   envDuration("RELAY_INTERVAL", 5*time.Second),

		RolloverInterval:   envDuration("ROLLOVER_INTERVAL", time.Minute),
		ReconcileInterval:  envDuration("RECONCILE_INTERVAL", 30*time.Second),
		RankShiftThreshold: envInt("RANK_SHIFT_THRESHOLD", 5),
		TopCutoff:          envInt("TOP_CUTOFF", 10),
		QueueHighWater:     envInt("QUEUE_HIGH_WATER", 1000),
		SnapshotTop:        envInt("SNAPSHOT_TOP_N", 100),
		IdempotencyTTL:     envDuration("IDEMPOTENCY_TTL", 7*24*time.Hour),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
