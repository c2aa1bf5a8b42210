package ports

import (
	"context"
	"time"

	"questline/contexts/player-progression/reward-service/domain/entities"
)

// SyncIntent is the unit of work queued for external ledger settlement.
// Delivery is at-least-once; the ledger must treat EventID as idempotency key.
type SyncIntent struct {
	EventID    string
	UserID     string
	ActionID   string
	Amount     int64
	OccurredAt time.Time
}

// AwardMutation is the complete state change produced for one award inside
// the per-user critical section: the updated profile, the appended event and
// the sync intent persisted to the outbox in the same transaction.
type AwardMutation struct {
	Profile entities.RewardProfile
	Event   entities.RewardEvent
	Intent  SyncIntent
}

// AwardFunc computes the mutation from the current profile state. It runs
// with the profile row locked (or the store mutex held) so read-modify-write
// of XP total and level is serialized per user.
type AwardFunc func(current entities.RewardProfile, found bool) (AwardMutation, error)

// ProfileRepository owns the durable write boundary of the award path.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (entities.RewardProfile, error)
	// ApplyAward must atomically persist the profile update, the reward
	// event, the action trigger and the outbox row, or nothing at all.
	ApplyAward(ctx context.Context, userID string, apply AwardFunc) (AwardMutation, error)
	// ListEventsSince feeds background reconciliation from the durable log.
	ListEventsSince(ctx context.Context, since time.Time, limit int) ([]entities.RewardEvent, error)
}

// GuardStore exposes throttle-state reads backing the cooldown/cap guard.
// The guard never writes through this interface: trigger commits ride the
// award transaction so a failed write cannot consume a cooldown slot.
type GuardStore interface {
	LastTrigger(ctx context.Context, userID string, actionID string) (time.Time, bool, error)
	DailyCount(ctx context.Context, userID string, actionID string, dayStart time.Time) (int, error)
}

// QueuedIntent is an outbox row due for (re)delivery.
type QueuedIntent struct {
	Intent     SyncIntent
	RetryCount int
}

// SyncQueue models the worker-facing side of the durable outbox.
type SyncQueue interface {
	// ListDueIntents returns pending intents whose next attempt is due, in
	// FIFO order, up to limit.
	ListDueIntents(ctx context.Context, now time.Time, limit int) ([]QueuedIntent, error)
	MarkConfirmed(ctx context.Context, eventID string, at time.Time) error
	// MarkFailed bumps the retry counter and schedules the next attempt.
	// Intents are never dropped.
	MarkFailed(ctx context.Context, eventID string, retryCount int, nextAttempt time.Time) error
	PendingCount(ctx context.Context) (int, error)
}

// LedgerClient is the outbound collaborator contract for settlement.
type LedgerClient interface {
	SubmitRewardBatch(ctx context.Context, intents []SyncIntent) error
}

// RankedEntry is one row of a live leaderboard read.
type RankedEntry struct {
	Rank   int
	UserID string
	Score  int64
}

// RankChange reports the externally visible movement one update caused.
// Ranks are 1-indexed; OldRank is 0 when the user was previously unranked.
type RankChange struct {
	Window   entities.Window
	PeriodID string
	OldRank  int
	NewRank  int
}

// RankingStore maintains the ordered score views. Set is an absolute-score
// upsert so replays are idempotent; implementations must be safe for
// concurrent use.
type RankingStore interface {
	Set(window entities.Window, periodID string, userID string, score int64) RankChange
	Rank(window entities.Window, periodID string, userID string) (int, bool)
	Top(window entities.Window, periodID string, limit int, offset int) []RankedEntry
	Around(window entities.Window, periodID string, userID string, radius int) []RankedEntry
	// Clear removes the live structure of a closed period after archiving.
	Clear(window entities.Window, periodID string)
	LivePeriods(window entities.Window) []string
}

// SnapshotRepository persists archived leaderboards of closed periods.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot entities.LeaderboardSnapshot) error
	GetSnapshot(ctx context.Context, window entities.Window, periodID string) (entities.LeaderboardSnapshot, error)
}

// IdempotencyRecord captures dedupe metadata for mutating requests.
type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

// IdempotencyStore abstracts idempotency persistence with TTL handling.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

// Clock allows deterministic testing of time-dependent rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event/snapshot identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
