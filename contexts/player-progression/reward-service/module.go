// Package rewardservice composes the player progression reward system:
// the action catalog, the award orchestration pipeline, live ranking views,
// the durable ledger-sync outbox and the background workers that keep all
// three consistent.
package rewardservice

import (
	"context"
	"log/slog"
	"time"

	httpadapter "questline/contexts/player-progression/reward-service/adapters/http"
	"questline/contexts/player-progression/reward-service/adapters/memory"
	"questline/contexts/player-progression/reward-service/adapters/ranking"
	"questline/contexts/player-progression/reward-service/application/commands"
	"questline/contexts/player-progression/reward-service/application/queries"
	"questline/contexts/player-progression/reward-service/application/workers"
	"questline/contexts/player-progression/reward-service/domain/entities"
	"questline/contexts/player-progression/reward-service/domain/services"
	"questline/contexts/player-progression/reward-service/ports"
)

// Module is the composition surface of the reward service. Runtime wiring
// consumes Handler and the workers; Store, Rankings and Notifier are exposed
// for tests and inspection.
type Module struct {
	Handler    httpadapter.Handler
	Award      commands.AwardRewardUseCase
	Relay      workers.LedgerRelay
	Rollover   workers.PeriodRollover
	Reconciler *workers.RankingReconciler

	Store    *memory.Store
	Rankings ports.RankingStore
	Notifier ports.Notifier
}

type Dependencies struct {
	Catalog     entities.ActionCatalog
	Profiles    ports.ProfileRepository
	Guard       ports.GuardStore
	Queue       ports.SyncQueue
	Ledger      ports.LedgerClient
	Rankings    ports.RankingStore
	Snapshots   ports.SnapshotRepository
	Notifier    ports.Notifier
	Idempotency ports.IdempotencyStore
	Clock       ports.Clock
	IDGenerator ports.IDGenerator

	RankShiftThreshold int
	TopCutoff          int
	QueueHighWater     int
	SnapshotTop        int
	LedgerBatchSize    int
	IdempotencyTTL     time.Duration

	Logger *slog.Logger
}

// NewModule wires the use cases and workers against explicit ports.
func NewModule(deps Dependencies) Module {
	calculator := services.NewRewardCalculator()
	levels := services.NewLevelTable(services.DefaultLevelThresholds())

	award := commands.AwardRewardUseCase{
		Catalog:            deps.Catalog,
		Profiles:           deps.Profiles,
		Guard:              deps.Guard,
		Rankings:           deps.Rankings,
		Queue:              deps.Queue,
		Notifier:           deps.Notifier,
		Idempotency:        deps.Idempotency,
		Clock:              deps.Clock,
		IDGenerator:        deps.IDGenerator,
		Calculator:         calculator,
		Levels:             levels,
		RankShiftThreshold: deps.RankShiftThreshold,
		TopCutoff:          deps.TopCutoff,
		QueueHighWater:     deps.QueueHighWater,
		IdempotencyTTL:     deps.IdempotencyTTL,
		Logger:             deps.Logger,
	}

	getProfile := queries.GetProfileUseCase{
		Profiles: deps.Profiles,
		Rankings: deps.Rankings,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}
	getLeaderboard := queries.GetLeaderboardUseCase{
		Rankings: deps.Rankings,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}
	getRank := queries.GetRankUseCase{
		Rankings: deps.Rankings,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}
	getAround := queries.GetAroundUseCase{
		Rankings: deps.Rankings,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}
	getSnapshot := queries.GetSnapshotUseCase{
		Snapshots: deps.Snapshots,
		Logger:    deps.Logger,
	}

	relay := workers.LedgerRelay{
		Queue:     deps.Queue,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
		BatchSize: deps.LedgerBatchSize,
		Logger:    deps.Logger,
	}

	rollover := workers.PeriodRollover{
		Rankings:    deps.Rankings,
		Snapshots:   deps.Snapshots,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		SnapshotTop: deps.SnapshotTop,
		PrizeActions: map[entities.Window]string{
			entities.WindowWeekly:  "weekly_podium",
			entities.WindowMonthly: "monthly_podium",
		},
		AwardPrize: func(ctx context.Context, userID string, actionID string) error {
			_, err := award.Execute(ctx, commands.AwardRewardCommand{
				UserID:   userID,
				ActionID: actionID,
			})
			return err
		},
		Logger: deps.Logger,
	}

	reconciler := &workers.RankingReconciler{
		Profiles: deps.Profiles,
		Rankings: deps.Rankings,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}

	handler := httpadapter.Handler{
		AwardReward:    award,
		GetProfile:     getProfile,
		GetLeaderboard: getLeaderboard,
		GetRank:        getRank,
		GetAround:      getAround,
		GetSnapshot:    getSnapshot,
		Logger:         deps.Logger,
	}

	return Module{
		Handler:    handler,
		Award:      award,
		Relay:      relay,
		Rollover:   rollover,
		Reconciler: reconciler,
		Rankings:   deps.Rankings,
		Notifier:   deps.Notifier,
	}
}

// NewInMemoryModule wires the service against in-memory adapters with the
// default action catalog. Used by tests and local development.
func NewInMemoryModule(ledger ports.LedgerClient, logger *slog.Logger) Module {
	store := memory.NewStore()
	rankings := ranking.NewStore()
	notifier := memory.NewNotifier()

	module := NewModule(Dependencies{
		Catalog:            entities.NewActionCatalog(entities.DefaultActions()),
		Profiles:           store,
		Guard:              store,
		Queue:              store,
		Ledger:             ledger,
		Rankings:           rankings,
		Snapshots:          store,
		Notifier:           notifier,
		Idempotency:        store,
		Clock:              store,
		IDGenerator:        store,
		RankShiftThreshold: 5,
		TopCutoff:          10,
		QueueHighWater:     1000,
		SnapshotTop:        100,
		IdempotencyTTL:     7 * 24 * time.Hour,
		Logger:             logger,
	})
	module.Store = store
	module.Notifier = notifier
	return module
}
