package workers

import (
	"context"
	"log/slog"
	"time"

	application "questline/contexts/player-progression/reward-service/application"
	"questline/contexts/player-progression/reward-service/domain/entities"
	"questline/contexts/player-progression/reward-service/ports"
)

// PeriodRollover archives weekly/monthly boards whose period has closed,
// pays out podium prizes and clears the live structure. Archive strictly
// precedes clear so a crash mid-rollover loses nothing; re-running over an
// already archived period only overwrites the snapshot with equal data.
type PeriodRollover struct {
	Rankings    ports.RankingStore
	Snapshots   ports.SnapshotRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	SnapshotTop int
	PrizeCount  int
	// PrizeActions maps a window to the catalog action awarded to its top
	// finishers; windows without an entry pay no prize.
	PrizeActions map[entities.Window]string
	// AwardPrize runs a prize through the regular award path.
	AwardPrize func(ctx context.Context, userID string, actionID string) error
	Logger     *slog.Logger
}

func (w PeriodRollover) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := w.now()

	for _, window := range []entities.Window{entities.WindowWeekly, entities.WindowMonthly} {
		current := entities.PeriodID(window, now)
		for _, periodID := range w.Rankings.LivePeriods(window) {
			if periodID == current {
				continue
			}
			if err := w.rollover(ctx, window, periodID, now, logger); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w PeriodRollover) rollover(ctx context.Context, window entities.Window, periodID string, now time.Time, logger *slog.Logger) error {
	top := w.Rankings.Top(window, periodID, w.snapshotTop(), 0)

	snapshotID, err := w.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	start, end, _ := entities.ParsePeriodID(window, periodID)
	snapshot := entities.LeaderboardSnapshot{
		SnapshotID:  snapshotID,
		Window:      window,
		PeriodID:    periodID,
		PeriodStart: start,
		PeriodEnd:   end,
		Entries:     make([]entities.SnapshotEntry, 0, len(top)),
		ArchivedAt:  now,
	}
	for _, entry := range top {
		snapshot.Entries = append(snapshot.Entries, entities.SnapshotEntry{
			Rank:   entry.Rank,
			UserID: entry.UserID,
			Score:  entry.Score,
		})
	}

	if err := w.Snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		logger.Error("period snapshot archive failed",
			"event", "rollover_archive_failed",
			"module", "player-progression/reward-service",
			"layer", "worker",
			"window", string(window),
			"period_id", periodID,
			"error", err.Error(),
		)
		return err
	}

	w.payPrizes(ctx, window, top, logger)

	// Clear only after the archive write succeeded.
	w.Rankings.Clear(window, periodID)

	logger.Info("period rolled over",
		"event", "rollover_completed",
		"module", "player-progression/reward-service",
		"layer", "worker",
		"window", string(window),
		"period_id", periodID,
		"archived_entries", len(snapshot.Entries),
	)
	return nil
}

func (w PeriodRollover) payPrizes(ctx context.Context, window entities.Window, top []ports.RankedEntry, logger *slog.Logger) {
	if w.AwardPrize == nil {
		return
	}
	actionID, ok := w.PrizeActions[window]
	if !ok || actionID == "" {
		return
	}
	prizeCount := w.PrizeCount
	if prizeCount <= 0 {
		prizeCount = 3
	}
	for i, entry := range top {
		if i >= prizeCount {
			break
		}
		if err := w.AwardPrize(ctx, entry.UserID, actionID); err != nil {
			// Prize failures are logged and left to the next operator
			// replay; the archive itself already committed.
			logger.Error("podium prize award failed",
				"event", "rollover_prize_failed",
				"module", "player-progression/reward-service",
				"layer", "worker",
				"window", string(window),
				"user_id", entry.UserID,
				"action_id", actionID,
				"error", err.Error(),
			)
		}
	}
}

func (w PeriodRollover) snapshotTop() int {
	if w.SnapshotTop <= 0 {
		return 100
	}
	return w.SnapshotTop
}

func (w PeriodRollover) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
