package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "questline/contexts/player-progression/reward-service/application"
	"questline/contexts/player-progression/reward-service/domain/entities"
	domainerrors "questline/contexts/player-progression/reward-service/domain/errors"
	"questline/contexts/player-progression/reward-service/domain/services"
	"questline/contexts/player-progression/reward-service/ports"
)

type AwardRewardCommand struct {
	UserID         string
	ActionID       string
	IdempotencyKey string
}

type AwardRewardResult struct {
	Accepted  bool
	Amount    int64
	TotalXP   int64
	Level     int
	LeveledUp bool
	Replayed  bool
}

// AwardRewardUseCase sequences one reward request: catalog validation, guard
// check, the atomic durable write, then best-effort ranking, backpressure
// and notification steps. Everything after the durable commit degrades to
// background reconciliation instead of failing the caller.
type AwardRewardUseCase struct {
	Catalog            entities.ActionCatalog
	Profiles           ports.ProfileRepository
	Guard              ports.GuardStore
	Rankings           ports.RankingStore
	Queue              ports.SyncQueue
	Notifier           ports.Notifier
	Idempotency        ports.IdempotencyStore
	Clock              ports.Clock
	IDGenerator        ports.IDGenerator
	Calculator         services.RewardCalculator
	Levels             services.LevelTable
	RankShiftThreshold int
	TopCutoff          int
	QueueHighWater     int
	PersistTimeout     time.Duration
	IdempotencyTTL     time.Duration
	Logger             *slog.Logger
}

func (u AwardRewardUseCase) Execute(ctx context.Context, cmd AwardRewardCommand) (AwardRewardResult, error) {
	logger := application.ResolveLogger(u.Logger)
	userID := strings.TrimSpace(cmd.UserID)
	actionID := strings.TrimSpace(cmd.ActionID)
	if userID == "" || actionID == "" {
		return AwardRewardResult{}, domainerrors.ErrInvalidAwardRequest
	}

	now := u.now()

	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	requestHash := hashAwardRequest(userID, actionID)
	if idempotencyKey != "" {
		replayed, found, err := u.replayFromIdempotency(ctx, idempotencyKey, requestHash, now)
		if err != nil {
			return AwardRewardResult{}, err
		}
		if found {
			logger.Info("award replayed from idempotency",
				"event", "award_replayed",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", userID,
				"action_id", actionID,
			)
			return replayed, nil
		}
	}

	action, ok := u.Catalog.Lookup(actionID)
	if !ok {
		logger.Warn("award rejected for unknown action",
			"event", "award_invalid_action",
			"module", "player-progression/reward-service",
			"layer", "application",
			"user_id", userID,
			"action_id", actionID,
		)
		return AwardRewardResult{}, domainerrors.ErrInvalidAction
	}

	if err := u.checkGuard(ctx, action, userID, now); err != nil {
		return AwardRewardResult{}, err
	}

	mutation, err := u.persistAward(ctx, action, userID, now)
	if err != nil {
		logger.Error("award durable write failed",
			"event", "award_persist_failed",
			"module", "player-progression/reward-service",
			"layer", "application",
			"user_id", userID,
			"action_id", actionID,
			"error", err.Error(),
		)
		return AwardRewardResult{}, fmt.Errorf("%w: %v", domainerrors.ErrPersistenceFailed, err)
	}

	// The financial fact is committed; nothing below may fail the caller.
	u.applyRankings(mutation, logger)
	u.checkBackpressure(ctx, logger)
	u.notify(mutation, logger)

	result := AwardRewardResult{
		Accepted:  true,
		Amount:    mutation.Event.Amount,
		TotalXP:   mutation.Event.TotalAfter,
		Level:     mutation.Event.LevelAfter,
		LeveledUp: mutation.Event.LeveledUp,
	}

	if idempotencyKey != "" {
		if err := u.recordIdempotency(ctx, idempotencyKey, requestHash, result, now); err != nil {
			logger.Warn("award idempotency record failed",
				"event", "award_idempotency_put_failed",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", userID,
				"error", err.Error(),
			)
		}
	}

	logger.Info("reward awarded",
		"event", "reward_awarded",
		"module", "player-progression/reward-service",
		"layer", "application",
		"user_id", userID,
		"action_id", actionID,
		"amount", mutation.Event.Amount,
		"total_xp", mutation.Event.TotalAfter,
		"level", mutation.Event.LevelAfter,
		"leveled_up", mutation.Event.LeveledUp,
	)
	return result, nil
}

// checkGuard runs the optimistic throttle check. Actions without policy skip
// the guard store entirely; actions with policy fail closed when the store
// is unreachable, preferring a rejected request over a double award.
func (u AwardRewardUseCase) checkGuard(ctx context.Context, action entities.ActionDefinition, userID string, now time.Time) error {
	if !action.Throttled() {
		return nil
	}
	logger := application.ResolveLogger(u.Logger)

	if action.Cooldown > 0 {
		last, found, err := u.Guard.LastTrigger(ctx, userID, action.ID)
		if err != nil {
			logger.Error("guard store unavailable, failing closed",
				"event", "award_guard_unavailable",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", userID,
				"action_id", action.ID,
				"error", err.Error(),
			)
			return domainerrors.ErrThrottled
		}
		if found && now.Sub(last) < action.Cooldown {
			return domainerrors.ErrThrottled
		}
	}

	if action.DailyCap > 0 {
		dayStart := now.UTC().Truncate(24 * time.Hour)
		count, err := u.Guard.DailyCount(ctx, userID, action.ID, dayStart)
		if err != nil {
			logger.Error("guard store unavailable, failing closed",
				"event", "award_guard_unavailable",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", userID,
				"action_id", action.ID,
				"error", err.Error(),
			)
			return domainerrors.ErrThrottled
		}
		if count >= action.DailyCap {
			return domainerrors.ErrThrottled
		}
	}
	return nil
}

// persistAward runs the all-or-nothing transaction: profile update, event
// append, trigger commit and outbox row. The AwardFunc executes under the
// per-user lock held by the repository.
func (u AwardRewardUseCase) persistAward(ctx context.Context, action entities.ActionDefinition, userID string, now time.Time) (ports.AwardMutation, error) {
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return ports.AwardMutation{}, err
	}

	persistCtx, cancel := context.WithTimeout(ctx, u.persistTimeout())
	defer cancel()

	return u.Profiles.ApplyAward(persistCtx, userID, func(current entities.RewardProfile, found bool) (ports.AwardMutation, error) {
		if !found {
			current = entities.NewRewardProfile(userID, now)
		}

		streak := entities.NextStreak(current.Streak, current.LastAwardAt, now)
		amount := u.Calculator.FinalAmount(action.BaseAmount, streak, now)
		total := current.TotalXP + amount
		level := u.Levels.LevelFor(total)
		leveledUp := level > current.Level
		if level < current.Level {
			// Levels never regress; the table is fixed and XP only grows.
			level = current.Level
		}

		current.TotalXP = total
		current.Level = level
		current.Streak = streak
		current.LastAwardAt = now.UTC()
		current.UpdatedAt = now.UTC()

		event := entities.RewardEvent{
			EventID:    eventID,
			UserID:     userID,
			ActionID:   action.ID,
			Amount:     amount,
			TotalAfter: total,
			LevelAfter: level,
			LeveledUp:  leveledUp,
			OccurredAt: now.UTC(),
		}
		return ports.AwardMutation{
			Profile: current,
			Event:   event,
			Intent: ports.SyncIntent{
				EventID:    eventID,
				UserID:     userID,
				ActionID:   action.ID,
				Amount:     amount,
				OccurredAt: now.UTC(),
			},
		}, nil
	})
}

func (u AwardRewardUseCase) applyRankings(mutation ports.AwardMutation, logger *slog.Logger) {
	if u.Rankings == nil {
		return
	}
	for _, window := range entities.Windows() {
		periodID := entities.PeriodID(window, mutation.Event.OccurredAt)
		change := u.Rankings.Set(window, periodID, mutation.Event.UserID, mutation.Event.TotalAfter)
		if !u.significantShift(change) {
			continue
		}
		if u.Notifier == nil {
			continue
		}
		rankEvent := ports.RankChangedEvent{
			UserID:   mutation.Event.UserID,
			Window:   change.Window,
			PeriodID: change.PeriodID,
			OldRank:  change.OldRank,
			NewRank:  change.NewRank,
		}
		if err := u.Notifier.SendToUser(mutation.Event.UserID, rankEvent); err != nil {
			logger.Warn("rank change notification failed",
				"event", "award_rank_notify_failed",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", mutation.Event.UserID,
				"window", string(change.Window),
				"error", err.Error(),
			)
		}
		if err := u.Notifier.Publish(ports.LeaderboardChannel, rankEvent); err != nil {
			logger.Warn("rank change broadcast failed",
				"event", "award_rank_broadcast_failed",
				"module", "player-progression/reward-service",
				"layer", "application",
				"window", string(change.Window),
				"error", err.Error(),
			)
		}
	}
}

// significantShift gates rank-change notifications: a move of at least the
// configured threshold, or any change landing inside the visible top tier.
// Old ranks read before a concurrent commit from another user may be stale;
// the resulting delta is an approximation, not an invariant.
func (u AwardRewardUseCase) significantShift(change ports.RankChange) bool {
	if change.NewRank == change.OldRank {
		return false
	}
	if change.OldRank == 0 {
		return u.TopCutoff > 0 && change.NewRank <= u.TopCutoff
	}
	delta := change.OldRank - change.NewRank
	if delta < 0 {
		delta = -delta
	}
	if u.RankShiftThreshold > 0 && delta >= u.RankShiftThreshold {
		return true
	}
	return u.TopCutoff > 0 && change.NewRank <= u.TopCutoff
}

func (u AwardRewardUseCase) checkBackpressure(ctx context.Context, logger *slog.Logger) {
	if u.Queue == nil || u.QueueHighWater <= 0 {
		return
	}
	depth, err := u.Queue.PendingCount(ctx)
	if err != nil {
		logger.Warn("sync queue depth check failed",
			"event", "award_queue_depth_failed",
			"module", "player-progression/reward-service",
			"layer", "application",
			"error", err.Error(),
		)
		return
	}
	if depth > u.QueueHighWater {
		logger.Warn("sync queue above high-water mark",
			"event", "award_queue_high_water",
			"module", "player-progression/reward-service",
			"layer", "application",
			"depth", depth,
			"high_water", u.QueueHighWater,
		)
	}
}

func (u AwardRewardUseCase) notify(mutation ports.AwardMutation, logger *slog.Logger) {
	if u.Notifier == nil {
		return
	}
	granted := ports.RewardGrantedEvent{
		UserID:   mutation.Event.UserID,
		ActionID: mutation.Event.ActionID,
		Amount:   mutation.Event.Amount,
		TotalXP:  mutation.Event.TotalAfter,
		Level:    mutation.Event.LevelAfter,
	}
	if err := u.Notifier.SendToUser(mutation.Event.UserID, granted); err != nil {
		logger.Warn("reward notification failed",
			"event", "award_notify_failed",
			"module", "player-progression/reward-service",
			"layer", "application",
			"user_id", mutation.Event.UserID,
			"error", err.Error(),
		)
	}
	if mutation.Event.LeveledUp {
		levelUp := ports.LevelUpEvent{
			UserID: mutation.Event.UserID,
			Level:  mutation.Event.LevelAfter,
		}
		if err := u.Notifier.SendToUser(mutation.Event.UserID, levelUp); err != nil {
			logger.Warn("level-up notification failed",
				"event", "award_levelup_notify_failed",
				"module", "player-progression/reward-service",
				"layer", "application",
				"user_id", mutation.Event.UserID,
				"error", err.Error(),
			)
		}
	}
}

func (u AwardRewardUseCase) replayFromIdempotency(ctx context.Context, key string, requestHash string, now time.Time) (AwardRewardResult, bool, error) {
	record, found, err := u.Idempotency.Get(ctx, key, now)
	if err != nil {
		return AwardRewardResult{}, false, err
	}
	if !found {
		return AwardRewardResult{}, false, nil
	}
	if record.RequestHash != requestHash {
		return AwardRewardResult{}, false, domainerrors.ErrIdempotencyKeyConflict
	}
	var replayed AwardRewardResult
	if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
		return AwardRewardResult{}, false, err
	}
	replayed.Replayed = true
	return replayed, true, nil
}

func (u AwardRewardUseCase) recordIdempotency(ctx context.Context, key string, requestHash string, result AwardRewardResult, now time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return u.Idempotency.Put(ctx, ports.IdempotencyRecord{
		Key:             key,
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(u.idempotencyTTL()),
	})
}

func (u AwardRewardUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}

func (u AwardRewardUseCase) persistTimeout() time.Duration {
	if u.PersistTimeout <= 0 {
		return 5 * time.Second
	}
	return u.PersistTimeout
}

func (u AwardRewardUseCase) idempotencyTTL() time.Duration {
	if u.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return u.IdempotencyTTL
}

func hashAwardRequest(userID string, actionID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|award_reward", userID, actionID)))
	return hex.EncodeToString(sum[:])
}
