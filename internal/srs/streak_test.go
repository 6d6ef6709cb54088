package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreakFirstActivity(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, changed := Streak{}.Touch(today)
	assert.True(t, changed)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.TotalDays)
	assert.Equal(t, DateOf(today), s.LastActive)
}

func TestStreakSameDayIdempotent(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _ := Streak{}.Touch(today)

	// Later the same day, any number of times.
	for i := 0; i < 3; i++ {
		var changed bool
		s, changed = s.Touch(today.Add(5 * time.Hour))
		assert.False(t, changed)
		assert.Equal(t, 1, s.Current)
		assert.Equal(t, 1, s.TotalDays)
	}
}

func TestStreakConsecutiveDays(t *testing.T) {
	day := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	var s Streak
	for i := 1; i <= 5; i++ {
		var changed bool
		s, changed = s.Touch(day)
		assert.True(t, changed)
		assert.Equal(t, i, s.Current)
		assert.Equal(t, i, s.TotalDays)
		day = day.AddDate(0, 0, 1)
	}
}

func TestStreakGapResets(t *testing.T) {
	s, _ := Streak{}.Touch(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	s, _ = s.Touch(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, s.Current)

	// Two days of silence.
	s, changed := s.Touch(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	assert.True(t, changed)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 3, s.TotalDays)
}
