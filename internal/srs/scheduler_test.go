package srs

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func TestParseRating(t *testing.T) {
	for s, want := range map[string]Rating{"fail": Fail, "hard": Hard, "easy": Easy} {
		got, err := ParseRating(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, s := range []string{"", "medium", "EASY", "2"} {
		_, err := ParseRating(s)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestReviewNewItemEasy(t *testing.T) {
	m, err := Review(nil, Easy, testToday)
	require.NoError(t, err)

	assert.Equal(t, 5.0, m.Stability)
	assert.Equal(t, 5.0, m.Difficulty)
	// 5.0 * 0.9 = 4.5, rounded half away from zero.
	assert.Equal(t, 5, m.Interval)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), m.Due)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), m.LastReview)
	assert.Equal(t, 1, m.Successes)
	assert.Equal(t, 0, m.Failures)
}

func TestReviewNewItemSeeds(t *testing.T) {
	m, err := Review(nil, Fail, testToday)
	require.NoError(t, err)
	assert.Equal(t, 0.4, m.Stability)
	assert.Equal(t, 1, m.Interval)
	assert.Equal(t, 0, m.Successes)
	assert.Equal(t, 1, m.Failures)

	m, err = Review(nil, Hard, testToday)
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.Stability)
	assert.Equal(t, 2, m.Interval)
	assert.Equal(t, 1, m.Successes)
}

func TestReviewExistingItemFail(t *testing.T) {
	prev := &Memory{Stability: 5.0, Difficulty: 5.0, Successes: 1}
	m, err := Review(prev, Fail, testToday)
	require.NoError(t, err)

	assert.Equal(t, 2.0, m.Stability)
	assert.InDelta(t, 4.32, m.Difficulty, 1e-9)
	// round(2.0 * 0.9) = 2
	assert.Equal(t, 2, m.Interval)
	assert.Equal(t, 1, m.Successes)
	assert.Equal(t, 1, m.Failures)
	assert.Equal(t, m.LastReview.AddDate(0, 0, m.Interval), m.Due)
}

func TestReviewExistingItemGrowth(t *testing.T) {
	prev := &Memory{Stability: 5.0, Difficulty: 5.0}
	m, err := Review(prev, Easy, testToday)
	require.NoError(t, err)

	// difficulty: 5.0 - 0.32 + 0.18*(5-3) = 5.04
	assert.InDelta(t, 5.04, m.Difficulty, 1e-9)
	wantStability := 5.0 * (1 + 1.5/(5.04*0.3))
	assert.InDelta(t, wantStability, m.Stability, 1e-9)
	assert.Equal(t, int(math.Round(wantStability*0.9)), m.Interval)
}

func TestReviewRoundingBothDirections(t *testing.T) {
	// 12.0 * 0.4 = 4.8 stability, 4.8 * 0.9 = 4.32: rounds down.
	m, err := Review(&Memory{Stability: 12.0, Difficulty: 5.0}, Fail, testToday)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Interval)

	// 13.0 * 0.4 = 5.2 stability, 5.2 * 0.9 = 4.68: rounds up.
	m, err = Review(&Memory{Stability: 13.0, Difficulty: 5.0}, Fail, testToday)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Interval)

	// The half itself rounds away from zero: a fresh easy item has
	// stability 5.0 and 5.0 * 0.9 = 4.5 gives a 5-day interval (checked in
	// TestReviewNewItemEasy as well).
	m, err = Review(nil, Easy, testToday)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Interval)
}

func TestReviewIntervalFloor(t *testing.T) {
	m, err := Review(&Memory{Stability: 0.5, Difficulty: 9.5}, Fail, testToday)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Interval)
	assert.True(t, m.Due.After(m.LastReview))
}

func TestReviewMalformedPriorState(t *testing.T) {
	// Negative stability and out-of-range difficulty must not produce a
	// zero or runaway interval.
	m, err := Review(&Memory{Stability: -3, Difficulty: 42}, Easy, testToday)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Interval, 1)
	assert.LessOrEqual(t, m.Difficulty, 10.0)
	assert.GreaterOrEqual(t, m.Difficulty, 1.0)
}

func TestReviewInvalidRating(t *testing.T) {
	_, err := Review(nil, Rating(2), testToday)
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestReviewPropertiesOverSequences(t *testing.T) {
	// Difficulty stays bounded, interval stays >= 1 and counters increase
	// by exactly one per review for arbitrary grading sequences.
	seqs := [][]Rating{
		{Easy, Easy, Easy, Easy, Easy, Easy, Easy, Easy},
		{Fail, Fail, Fail, Fail, Fail, Fail, Fail, Fail},
		{Easy, Fail, Hard, Easy, Fail, Fail, Easy, Hard},
		{Hard, Hard, Hard, Hard, Hard, Hard, Hard, Hard},
	}
	for _, seq := range seqs {
		var prev *Memory
		day := testToday
		for i, r := range seq {
			m, err := Review(prev, r, day)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, m.Difficulty, 1.0)
			assert.LessOrEqual(t, m.Difficulty, 10.0)
			assert.GreaterOrEqual(t, m.Interval, 1)
			assert.Equal(t, i+1, m.Successes+m.Failures)
			assert.Equal(t, m.LastReview.AddDate(0, 0, m.Interval), m.Due)
			if prev != nil {
				assert.GreaterOrEqual(t, m.Successes, prev.Successes)
				assert.GreaterOrEqual(t, m.Failures, prev.Failures)
			}
			day = m.Due
			prev = &m
		}
	}
}

func TestRetrievability(t *testing.T) {
	m := Memory{Stability: 5.0, LastReview: DateOf(testToday)}

	// Immediately after review recall is essentially certain.
	assert.InDelta(t, 1.0, Retrievability(m, testToday), 0.05)

	// It decays with elapsed time.
	later := Retrievability(m, testToday.AddDate(0, 0, 30))
	assert.Less(t, later, Retrievability(m, testToday.AddDate(0, 0, 5)))
	assert.Greater(t, later, 0.0)

	// No review history means no estimate.
	assert.Equal(t, 0.0, Retrievability(Memory{Stability: 5}, testToday))
	assert.Equal(t, 0.0, Retrievability(Memory{LastReview: testToday}, testToday))
}
