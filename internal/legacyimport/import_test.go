package legacyimport

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestReconstructMemory(t *testing.T) {
	is := is.New(t)
	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mem := reconstructMemory(9, 4, 1, due)
	// interval / 0.9
	is.Equal(mem.Stability, 10.0)
	is.Equal(mem.Difficulty, 5.0)
	is.Equal(mem.Interval, 9)
	is.Equal(mem.Due, due)
	is.Equal(mem.LastReview, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	is.Equal(mem.Successes, 4)
	is.Equal(mem.Failures, 1)

	// The old app defaulted intervals to 1 but a few rows carried 0.
	mem = reconstructMemory(0, 0, 2, due)
	is.Equal(mem.Interval, 1)
	is.Equal(mem.LastReview, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
}

func TestParseLegacyDate(t *testing.T) {
	is := is.New(t)
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	is.Equal(parseLegacyDate("2025-04-01", now),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	is.Equal(parseLegacyDate("2025-04-01T09:15:00Z", now),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	is.Equal(parseLegacyDate("2025-04-01 09:15:00", now),
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	// Garbage dates fall back to today rather than killing the run.
	is.Equal(parseLegacyDate("mañana", now),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
}
