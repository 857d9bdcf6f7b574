package streak

import (
	"time"

	"github.com/google/uuid"

	"coachReflectAPI/internal/badge"
)

type Streak struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	CurrentStreak   int        `json:"current_streak" db:"current_streak"`
	LongestStreak   int        `json:"longest_streak" db:"longest_streak"`
	LastActiveDate  *time.Time `json:"last_active_date" db:"last_active_date"`
	TotalActiveDays int        `json:"total_active_days" db:"total_active_days"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// ActivityResult is what a qualifying activity event reports back to the
// caller. BadgesEarned holds only badges granted by this event, so the
// caller can notify the user exactly once.
type ActivityResult struct {
	CurrentStreak   int            `json:"currentStreak"`
	LongestStreak   int            `json:"longestStreak"`
	TotalActiveDays int            `json:"totalActiveDays"`
	Advanced        bool           `json:"advanced"`
	BadgesEarned    []*badge.Badge `json:"badgesEarned"`
}

// DateOf strips the clock from t, keeping only the calendar date.
// Streak transitions are keyed by calendar date, not timestamp.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Advance applies one qualifying activity event for the calendar day of
// "today". It returns false when that day was already counted, so retried
// or out-of-order events for the same day never double-apply.
func (s *Streak) Advance(today time.Time) bool {
	day := DateOf(today)

	// Same-day short-circuit must run before any increment logic.
	if s.LastActiveDate != nil && DateOf(*s.LastActiveDate).Equal(day) {
		return false
	}

	yesterday := day.AddDate(0, 0, -1)
	switch {
	case s.LastActiveDate == nil:
		s.CurrentStreak = 1
	case DateOf(*s.LastActiveDate).Equal(yesterday):
		s.CurrentStreak++
	default:
		// Missed at least one day, streak starts over.
		s.CurrentStreak = 1
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.TotalActiveDays++
	s.LastActiveDate = &day

	return true
}
