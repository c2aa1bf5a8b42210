package workers

import (
	"context"
	"log/slog"
	"time"

	application "questline/contexts/player-progression/reward-service/application"
	"questline/contexts/player-progression/reward-service/ports"
)

// LedgerRelay drains the durable sync outbox in FIFO batches and submits one
// batched call to the external ledger. Items are confirmed only after the
// ledger acknowledges, so a crash in between causes redelivery, never loss.
type LedgerRelay struct {
	Queue       ports.SyncQueue
	Ledger      ports.LedgerClient
	Clock       ports.Clock
	BatchSize   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Logger      *slog.Logger
}

func (r LedgerRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	now := r.now()

	due, err := r.Queue.ListDueIntents(ctx, now, r.batchSize())
	if err != nil {
		logger.Error("sync outbox list failed",
			"event", "ledger_relay_list_failed",
			"module", "player-progression/reward-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(due) == 0 {
		return nil
	}

	intents := make([]ports.SyncIntent, 0, len(due))
	for _, item := range due {
		intents = append(intents, item.Intent)
	}

	if err := r.Ledger.SubmitRewardBatch(ctx, intents); err != nil {
		// Ledger unavailability is expected and never fatal to the relay
		// loop: every intent stays queued with exponential backoff.
		for _, item := range due {
			retry := item.RetryCount + 1
			nextAttempt := now.Add(r.backoff(retry))
			if markErr := r.Queue.MarkFailed(ctx, item.Intent.EventID, retry, nextAttempt); markErr != nil {
				logger.Error("sync outbox mark failed errored",
					"event", "ledger_relay_mark_failed_errored",
					"module", "player-progression/reward-service",
					"layer", "worker",
					"event_id", item.Intent.EventID,
					"error", markErr.Error(),
				)
				return markErr
			}
		}
		logger.Warn("ledger batch submission failed, backing off",
			"event", "ledger_relay_submit_failed",
			"module", "player-progression/reward-service",
			"layer", "worker",
			"batch_size", len(due),
			"error", err.Error(),
		)
		return nil
	}

	for _, item := range due {
		if err := r.Queue.MarkConfirmed(ctx, item.Intent.EventID, now); err != nil {
			logger.Error("sync outbox confirm failed",
				"event", "ledger_relay_confirm_failed",
				"module", "player-progression/reward-service",
				"layer", "worker",
				"event_id", item.Intent.EventID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("ledger batch confirmed",
		"event", "ledger_relay_batch_confirmed",
		"module", "player-progression/reward-service",
		"layer", "worker",
		"batch_size", len(due),
	)
	return nil
}

func (r LedgerRelay) backoff(retryCount int) time.Duration {
	base := r.BaseBackoff
	if base <= 0 {
		base = 5 * time.Second
	}
	max := r.MaxBackoff
	if max <= 0 {
		max = 10 * time.Minute
	}
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (r LedgerRelay) batchSize() int {
	if r.BatchSize <= 0 {
		return 100
	}
	return r.BatchSize
}

func (r LedgerRelay) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}
