package entities

import "time"

// RewardEvent is the immutable fact appended once per successful award.
type RewardEvent struct {
	EventID    string
	UserID     string
	ActionID   string
	Amount     int64
	TotalAfter int64
	LevelAfter int
	LeveledUp  bool
	OccurredAt time.Time
}
