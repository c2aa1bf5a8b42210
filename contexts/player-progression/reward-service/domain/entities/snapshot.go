package entities

import "time"

// SnapshotEntry is one ranked row inside an archived leaderboard.
type SnapshotEntry struct {
	Rank   int
	UserID string
	Score  int64
}

// LeaderboardSnapshot is the immutable archive of a closed weekly/monthly
// period, written by the rollover worker before the live board is cleared.
type LeaderboardSnapshot struct {
	SnapshotID  string
	Window      Window
	PeriodID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Entries     []SnapshotEntry
	ArchivedAt  time.Time
}
