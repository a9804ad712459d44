// Package engagement implements the progress rule engine.
// Points, levels, streaks, badges, achievements, quests and power-ups
// are pure functions over a domain.ProgressSnapshot; nothing here does I/O.
package engagement

import (
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// dayKey returns the calendar day of t in loc.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.DateLayout)
}

// daysBetween returns the number of calendar days from a to b.
// ok is false if either key does not parse.
func daysBetween(a, b string) (int, bool) {
	da, err := time.Parse(domain.DateLayout, a)
	if err != nil {
		return 0, false
	}
	db, err := time.Parse(domain.DateLayout, b)
	if err != nil {
		return 0, false
	}
	return int(db.Sub(da).Hours() / 24), true
}

// NextStreak computes the streak after a study session completed on today.
// Same day: unchanged. Next day: +1. Anything else: reset to 1.
func NextStreak(streak int, lastStudyDate, today string) int {
	if lastStudyDate == "" {
		return 1
	}
	gap, ok := daysBetween(lastStudyDate, today)
	if !ok {
		return 1
	}
	switch {
	case gap == 0:
		return max(streak, 1)
	case gap == 1:
		return streak + 1
	default:
		// Gap > 1, or a clock that moved backwards
		return 1
	}
}

// recordStudyDay applies the streak transition and stamps lastStudyDate.
func recordStudyDay(s *domain.ProgressSnapshot, today string) {
	s.Streak = NextStreak(s.Streak, s.LastStudyDate, today)
	s.LastStudyDate = today
}
