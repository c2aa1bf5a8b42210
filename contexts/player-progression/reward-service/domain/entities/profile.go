package entities

import "time"

// RewardProfile is the durable per-user progression record. It is created on
// the first award and only ever mutated by the award write path; XP total is
// monotonically non-decreasing and Level is always derived from it.
type RewardProfile struct {
	UserID      string
	TotalXP     int64
	Level       int
	Streak      int
	LastAwardAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRewardProfile returns the initial profile state for a first-time user.
func NewRewardProfile(userID string, now time.Time) RewardProfile {
	return RewardProfile{
		UserID:    userID,
		TotalXP:   0,
		Level:     1,
		Streak:    0,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// NextStreak computes the streak value an award at `now` produces: awards on
// consecutive UTC days extend the streak, same-day awards keep it, and a gap
// of more than one day resets it to 1.
func NextStreak(current int, lastAwardAt time.Time, now time.Time) int {
	if lastAwardAt.IsZero() {
		return 1
	}
	lastDay := lastAwardAt.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch today.Sub(lastDay) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 24 * time.Hour:
		return current + 1
	default:
		return 1
	}
}
