package entities

import (
	"fmt"
	"strings"
	"time"
)

// Window identifies one leaderboard scope. Global is unbounded; weekly and
// monthly boards live for one period and are archived on rollover.
type Window string

const (
	WindowGlobal  Window = "global"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Windows lists every scope in the order award writes fan out to them.
func Windows() []Window {
	return []Window{WindowGlobal, WindowWeekly, WindowMonthly}
}

func ParseWindow(value string) (Window, bool) {
	switch Window(strings.ToLower(strings.TrimSpace(value))) {
	case WindowGlobal:
		return WindowGlobal, true
	case WindowWeekly:
		return WindowWeekly, true
	case WindowMonthly:
		return WindowMonthly, true
	default:
		return "", false
	}
}

const globalPeriodID = "all"

// PeriodID derives the deterministic period key an event at `at` belongs to.
// Weekly periods follow ISO weeks, monthly periods the calendar month, both
// in UTC.
func PeriodID(window Window, at time.Time) string {
	at = at.UTC()
	switch window {
	case WindowWeekly:
		year, week := at.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case WindowMonthly:
		return at.Format("2006-01")
	default:
		return globalPeriodID
	}
}

// ParsePeriodID recovers the [start, end) interval of a weekly or monthly
// period key produced by PeriodID. Used when archiving periods that are no
// longer current.
func ParsePeriodID(window Window, periodID string) (time.Time, time.Time, bool) {
	switch window {
	case WindowWeekly:
		var year, week int
		if _, err := fmt.Sscanf(periodID, "%04d-W%02d", &year, &week); err != nil || week < 1 || week > 53 {
			return time.Time{}, time.Time{}, false
		}
		// January 4th is always inside ISO week 1.
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
		offset := (int(jan4.Weekday()) + 6) % 7
		week1Start := jan4.AddDate(0, 0, -offset)
		start := week1Start.AddDate(0, 0, (week-1)*7)
		return start, start.AddDate(0, 0, 7), true
	case WindowMonthly:
		start, err := time.Parse("2006-01", periodID)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return start, start.AddDate(0, 1, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// PeriodBounds returns the [start, end) interval of the period containing
// `at`. The global window spans all time and returns zero values.
func PeriodBounds(window Window, at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	switch window {
	case WindowWeekly:
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		// Walk back to the ISO week start (Monday).
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case WindowMonthly:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}
