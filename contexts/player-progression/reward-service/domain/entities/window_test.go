package entities

import (
	"testing"
	"time"
)

func TestPeriodIDFollowsISOWeeksAndMonths(t *testing.T) {
	at := time.Date(2026, time.August, 19, 23, 59, 0, 0, time.UTC)

	if got := PeriodID(WindowWeekly, at); got != "2026-W34" {
		t.Fatalf("expected 2026-W34, got %s", got)
	}
	if got := PeriodID(WindowMonthly, at); got != "2026-08" {
		t.Fatalf("expected 2026-08, got %s", got)
	}
	if got := PeriodID(WindowGlobal, at); got != "all" {
		t.Fatalf("expected all, got %s", got)
	}

	// The first days of January can belong to the previous ISO year.
	jan1 := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := PeriodID(WindowWeekly, jan1); got != "2026-W53" {
		t.Fatalf("expected 2026-W53, got %s", got)
	}
}

func TestParsePeriodIDRoundTrips(t *testing.T) {
	at := time.Date(2026, time.August, 19, 10, 0, 0, 0, time.UTC)

	for _, window := range []Window{WindowWeekly, WindowMonthly} {
		periodID := PeriodID(window, at)
		start, end, ok := ParsePeriodID(window, periodID)
		if !ok {
			t.Fatalf("%s: parse failed for %s", window, periodID)
		}
		wantStart, wantEnd := PeriodBounds(window, at)
		if !start.Equal(wantStart) || !end.Equal(wantEnd) {
			t.Fatalf("%s: bounds mismatch: [%v,%v) vs [%v,%v)", window, start, end, wantStart, wantEnd)
		}
		if at.Before(start) || !at.Before(end) {
			t.Fatalf("%s: %v outside [%v,%v)", window, at, start, end)
		}
	}

	if _, _, ok := ParsePeriodID(WindowWeekly, "garbage"); ok {
		t.Fatal("expected parse failure for garbage input")
	}
	if _, _, ok := ParsePeriodID(WindowGlobal, "all"); ok {
		t.Fatal("global window has no parseable period")
	}
}

func TestWeeklyPeriodStartsMonday(t *testing.T) {
	// Sunday belongs to the week started the previous Monday.
	sunday := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)
	start, _ := PeriodBounds(WindowWeekly, sunday)
	if start.Weekday() != time.Monday {
		t.Fatalf("expected Monday start, got %s", start.Weekday())
	}
	if start.Day() != 17 {
		t.Fatalf("expected Aug 17 start, got %d", start.Day())
	}
}

func TestNextStreakTransitions(t *testing.T) {
	monday := time.Date(2026, time.August, 17, 9, 0, 0, 0, time.UTC)

	if got := NextStreak(0, time.Time{}, monday); got != 1 {
		t.Fatalf("first award: expected 1, got %d", got)
	}
	if got := NextStreak(3, monday, monday.Add(2*time.Hour)); got != 3 {
		t.Fatalf("same day: expected 3, got %d", got)
	}
	if got := NextStreak(3, monday, monday.Add(24*time.Hour)); got != 4 {
		t.Fatalf("next day: expected 4, got %d", got)
	}
	if got := NextStreak(9, monday, monday.Add(72*time.Hour)); got != 1 {
		t.Fatalf("gap: expected reset to 1, got %d", got)
	}
	// Late night into early morning still counts as consecutive days.
	lateSunday := time.Date(2026, time.August, 16, 23, 50, 0, 0, time.UTC)
	if got := NextStreak(2, lateSunday, monday); got != 3 {
		t.Fatalf("midnight crossing: expected 3, got %d", got)
	}
}
