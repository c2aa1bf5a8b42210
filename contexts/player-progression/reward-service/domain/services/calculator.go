package services

import "time"

// RewardCalculator computes the final XP amount for one award. It is a pure
// function of its inputs; callers inject the event time so behavior stays
// deterministic under test.
type RewardCalculator struct {
	BonusDays map[time.Weekday]bool
}

// NewRewardCalculator returns a calculator with the default weekend bonus.
func NewRewardCalculator() RewardCalculator {
	return RewardCalculator{
		BonusDays: map[time.Weekday]bool{
			time.Saturday: true,
			time.Sunday:   true,
		},
	}
}

// FinalAmount applies the streak and bonus-day multipliers to the base
// amount. Multipliers compose multiplicatively and the product is truncated
// toward zero. The math is exact integer arithmetic: the multipliers are
// small rationals, so one multiply and one divide give the true product with
// no float rounding.
func (c RewardCalculator) FinalAmount(base int64, streak int, at time.Time) int64 {
	if base <= 0 {
		return 0
	}
	num, den := streakBonus(streak)
	if c.BonusDays[at.UTC().Weekday()] {
		num *= 3
		den *= 2
	}
	return base * num / den
}

// streakBonus maps a streak length to its multiplier as a numerator and
// denominator pair.
func streakBonus(streak int) (int64, int64) {
	switch {
	case streak >= 7:
		return 12, 10
	case streak >= 3:
		return 11, 10
	default:
		return 1, 1
	}
}
