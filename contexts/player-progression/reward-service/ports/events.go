package ports

import "questline/contexts/player-progression/reward-service/domain/entities"

// EventKind enumerates every notification this service emits. Payloads are
// concrete types behind the sealed Event interface so dispatch stays
// exhaustive instead of stringly typed.
type EventKind string

const (
	EventRewardGranted EventKind = "reward_granted"
	EventLevelUp       EventKind = "level_up"
	EventRankChanged   EventKind = "rank_changed"
)

// Event is the sealed notification union.
type Event interface {
	Kind() EventKind
}

type RewardGrantedEvent struct {
	UserID   string `json:"user_id"`
	ActionID string `json:"action_id"`
	Amount   int64  `json:"amount"`
	TotalXP  int64  `json:"total_xp"`
	Level    int    `json:"level"`
}

func (RewardGrantedEvent) Kind() EventKind { return EventRewardGranted }

type LevelUpEvent struct {
	UserID string `json:"user_id"`
	Level  int    `json:"level"`
}

func (LevelUpEvent) Kind() EventKind { return EventLevelUp }

type RankChangedEvent struct {
	UserID   string          `json:"user_id"`
	Window   entities.Window `json:"window"`
	PeriodID string          `json:"period_id"`
	OldRank  int             `json:"old_rank"`
	NewRank  int             `json:"new_rank"`
}

func (RankChangedEvent) Kind() EventKind { return EventRankChanged }

// LeaderboardChannel is the shared channel rank-change events broadcast on.
const LeaderboardChannel = "leaderboard"

// UserChannel names the private channel of one user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Notifier is the real-time fan-out contract. Delivery is at-most-once per
// currently connected subscriber; a missed push is corrected by the next
// client poll, never retried here.
type Notifier interface {
	SendToUser(userID string, event Event) error
	Publish(channel string, event Event) error
}
