package srs

import "time"

// Streak tracks consecutive active days for a user. LastActive is a date
// (zero means no activity ever recorded).
type Streak struct {
	LastActive time.Time
	Current    int
	TotalDays  int
}

// Touch records activity on the given day and returns the updated streak.
// The second return value is false when the user was already active today,
// so callers can make the per-day update idempotent no matter how many
// study actions happen in a day.
func (s Streak) Touch(today time.Time) (Streak, bool) {
	today = DateOf(today)
	if !s.LastActive.IsZero() && DateOf(s.LastActive).Equal(today) {
		return s, false
	}
	if !s.LastActive.IsZero() && DateOf(s.LastActive).AddDate(0, 0, 1).Equal(today) {
		s.Current++
	} else {
		s.Current = 1
	}
	s.TotalDays++
	s.LastActive = today
	return s, true
}
