package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "questline/contexts/player-progression/reward-service/application"
	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/ports"
)

// replayOverlap is subtracted from the watermark after each pass. An award
// commits after its OccurredAt is stamped, so an event can become visible in
// the log slightly later than its timestamp; re-reading the overlap window
// keeps such events from being skipped. Set is an absolute upsert, so the
// re-read is harmless.
const replayOverlap = 10 * time.Second

// RankingReconciler replays the durable reward event log into the in-memory
// ranking views. On a cold start (zero watermark) it replays from the
// beginning of the log, so a restarted process rebuilds the full standings;
// it repairs any drift left by a crash between the durable award commit and
// the in-memory rank update.
type RankingReconciler struct {
	Profiles  ports.ProfileRepository
	Rankings  ports.RankingStore
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger

	mu      sync.Mutex
	lastRun time.Time
}

func (w *RankingReconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	now := w.now()

	w.mu.Lock()
	since := w.lastRun
	w.mu.Unlock()

	events, err := w.Profiles.ListEventsSince(ctx, since, w.batchSize())
	if err != nil {
		logger.Error("ranking reconciliation read failed",
			"event", "reconciler_read_failed",
			"module", "player-progression/reward-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return fmt.Errorf("%w: %v", domainerrors.ErrDownstreamDegraded, err)
	}
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		for _, window := range entities.Windows() {
			periodID := entities.PeriodID(window, event.OccurredAt)
			// Weekly and monthly boards for closed periods were archived
			// and cleared by the rollover; resurrecting them would archive
			// them again and pay the podium prizes twice. Replay only the
			// period that is still live.
			if window != entities.WindowGlobal && periodID != entities.PeriodID(window, now) {
				continue
			}
			w.Rankings.Set(window, periodID, event.UserID, event.TotalAfter)
		}
	}

	// The watermark only ever moves to an OccurredAt actually seen in the
	// log, never the wall clock: an award whose transaction is still
	// committing when this pass reads would otherwise fall behind a
	// clock-based watermark and be lost.
	w.advance(events[len(events)-1].OccurredAt.Add(-replayOverlap))

	logger.Info("ranking views reconciled",
		"event", "reconciler_replayed",
		"module", "player-progression/reward-service",
		"layer", "worker",
		"events", len(events),
	)
	return nil
}

func (w *RankingReconciler) advance(to time.Time) {
	w.mu.Lock()
	if to.After(w.lastRun) {
		w.lastRun = to
	}
	w.mu.Unlock()
}

func (w *RankingReconciler) batchSize() int {
	if w.BatchSize <= 0 {
		return 500
	}
	return w.BatchSize
}

func (w *RankingReconciler) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock.Now().UTC()
}
