// Package srs implements the memory model behind review scheduling: a
// bounded difficulty estimate, a stability value in days, and the interval
// chosen from it. The numeric policy is deliberately small and fixed; it is
// not a full FSRS implementation.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/open-spaced-repetition/go-fsrs/v3"
)

type Rating int

// Ratings are collapsed from the three difficulty buttons in the UI. The
// numeric values are the grades fed into the difficulty update.
const (
	Fail Rating = 1
	Hard Rating = 3
	Easy Rating = 5
)

var ErrInvalidRating = fmt.Errorf("rating must be one of fail, hard, easy")

func ParseRating(s string) (Rating, error) {
	switch s {
	case "fail":
		return Fail, nil
	case "hard":
		return Hard, nil
	case "easy":
		return Easy, nil
	}
	return 0, ErrInvalidRating
}

func (r Rating) String() string {
	switch r {
	case Fail:
		return "fail"
	case Hard:
		return "hard"
	case Easy:
		return "easy"
	}
	return "unknown"
}

const (
	minDifficulty  = 1.0
	maxDifficulty  = 10.0
	seedDifficulty = 5.0

	// Stability below this is treated as corrupt and floored before use.
	minStability = 0.1

	// interval = round(stability * retentionTarget), aiming at ~90%
	// retrievability on the due date.
	retentionTarget = 0.9
)

var seedStability = map[Rating]float64{
	Fail: 0.4,
	Hard: 2.0,
	Easy: 5.0,
}

// Memory is the scheduling state for one (user, item) pair.
type Memory struct {
	Stability  float64
	Difficulty float64
	Interval   int
	Due        time.Time
	LastReview time.Time
	Successes  int
	Failures   int
}

// DateOf truncates t to a calendar date in UTC. All due-date arithmetic
// works on dates, not instants.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Review applies one grading to prev and returns the new state. A nil prev
// means first exposure. today is truncated to a date before use.
func Review(prev *Memory, r Rating, today time.Time) (Memory, error) {
	if r != Fail && r != Hard && r != Easy {
		return Memory{}, ErrInvalidRating
	}
	today = DateOf(today)

	var m Memory
	if prev == nil {
		m.Difficulty = seedDifficulty
		m.Stability = seedStability[r]
	} else {
		m = *prev
		m.Difficulty = clamp(m.Difficulty, minDifficulty, maxDifficulty)
		m.Difficulty = clamp(m.Difficulty-0.32+0.18*(float64(r)-3), minDifficulty, maxDifficulty)
		prevStability := math.Max(m.Stability, minStability)
		if r == Fail {
			m.Stability = prevStability * 0.4
		} else {
			m.Stability = prevStability * (1 + 1.5/(m.Difficulty*0.3))
		}
	}

	// math.Round: halves round away from zero, so stability 5.0 yields a
	// 5-day interval (round(4.5) == 5).
	m.Interval = int(math.Round(m.Stability * retentionTarget))
	if m.Interval < 1 {
		m.Interval = 1
	}
	m.LastReview = today
	m.Due = today.AddDate(0, 0, m.Interval)

	if r == Fail {
		m.Failures++
	} else {
		m.Successes++
	}
	return m, nil
}

// Retrievability estimates current recall probability from the stored
// stability, using the standard FSRS forgetting curve. Display only; it
// never feeds back into scheduling.
func Retrievability(m Memory, now time.Time) float64 {
	if m.Stability <= 0 || m.LastReview.IsZero() {
		return 0
	}
	p := fsrs.DefaultParam()
	elapsedDays := now.Sub(m.LastReview).Hours() / 24.0
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return math.Pow(1+p.Factor*elapsedDays/m.Stability, p.Decay)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
