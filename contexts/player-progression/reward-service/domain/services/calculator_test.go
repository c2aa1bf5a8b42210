package services

import (
	"testing"
	"time"
)

var (
	weekday = time.Date(2026, time.August, 19, 12, 0, 0, 0, time.UTC) // Wednesday
	weekend = time.Date(2026, time.August, 22, 12, 0, 0, 0, time.UTC) // Saturday
)

func TestFinalAmountAppliesStreakTiers(t *testing.T) {
	calc := NewRewardCalculator()

	cases := []struct {
		streak int
		want   int64
	}{
		{streak: 1, want: 100},
		{streak: 2, want: 100},
		{streak: 3, want: 110},
		{streak: 6, want: 110},
		{streak: 7, want: 120},
		{streak: 30, want: 120},
	}
	for _, tc := range cases {
		if got := calc.FinalAmount(100, tc.streak, weekday); got != tc.want {
			t.Fatalf("streak %d: expected %d, got %d", tc.streak, tc.want, got)
		}
	}
}

func TestFinalAmountAppliesWeekendBonus(t *testing.T) {
	calc := NewRewardCalculator()

	if got := calc.FinalAmount(20, 1, weekend); got != 30 {
		t.Fatalf("expected 30 on a bonus day, got %d", got)
	}
	// Multipliers compose: 100 * 1.1 * 1.5 = 165.
	if got := calc.FinalAmount(100, 3, weekend); got != 165 {
		t.Fatalf("expected composed multipliers to yield 165, got %d", got)
	}
}

func TestFinalAmountTruncatesTowardZero(t *testing.T) {
	calc := NewRewardCalculator()

	// 25 * 1.1 = 27.5, truncated to 27.
	if got := calc.FinalAmount(25, 3, weekday); got != 27 {
		t.Fatalf("expected truncation to 27, got %d", got)
	}
	if got := calc.FinalAmount(0, 5, weekday); got != 0 {
		t.Fatalf("expected 0 for zero base, got %d", got)
	}
}

func TestFinalAmountIsExactForLargeBases(t *testing.T) {
	calc := NewRewardCalculator()

	// Exact integral products must come back exact, not one below from
	// rounding in an intermediate representation.
	const base = int64(1_000_000_000_000_000)
	if got := calc.FinalAmount(base, 7, weekday); got != 1_200_000_000_000_000 {
		t.Fatalf("expected exactly 1.2e15, got %d", got)
	}
	if got := calc.FinalAmount(base, 7, weekend); got != 1_800_000_000_000_000 {
		t.Fatalf("expected exactly 1.8e15, got %d", got)
	}
	if got := calc.FinalAmount(base, 3, weekday); got != 1_100_000_000_000_000 {
		t.Fatalf("expected exactly 1.1e15, got %d", got)
	}
}

func TestLevelForResolvesThresholds(t *testing.T) {
	table := NewLevelTable(DefaultLevelThresholds())

	cases := []struct {
		total int64
		want  int
	}{
		{total: 0, want: 1},
		{total: 99, want: 1},
		{total: 100, want: 2},
		{total: 299, want: 2},
		{total: 300, want: 3},
		{total: 600, want: 4},
		{total: 1000, want: 5},
	}
	for _, tc := range cases {
		if got := table.LevelFor(tc.total); got != tc.want {
			t.Fatalf("total %d: expected level %d, got %d", tc.total, tc.want, got)
		}
	}
}

func TestLevelForCapsAtTableTop(t *testing.T) {
	table := NewLevelTable(DefaultLevelThresholds())

	if got := table.LevelFor(1 << 50); got != table.MaxLevel() {
		t.Fatalf("expected cap at %d, got %d", table.MaxLevel(), got)
	}
}

func TestEmptyTableDefaultsToLevelOne(t *testing.T) {
	table := NewLevelTable(nil)

	if got := table.LevelFor(12345); got != 1 {
		t.Fatalf("expected level 1 from empty table, got %d", got)
	}
}
