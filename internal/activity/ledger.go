// Package activity owns the append-only activity log. Events written here
// are the sole input to productivity scoring; they are never updated or
// deleted except when an account is removed outright.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

// Event kinds the scoring window understands. Other kinds may be recorded
// freely; they simply carry no score weight.
const (
	KindAnswer          = "answer"
	KindAnswerSubmitted = "answer_submitted"
	KindCreate          = "create"
	KindPardoned        = "pardoned"
	KindApproved        = "approved"
)

var ErrEmptyKind = errors.New("action kind must not be empty")
var ErrUserNotFound = errors.New("no such user")

// Record appends one event using the given query handle, which may be
// transaction-scoped. Metadata may be nil.
func Record(ctx context.Context, q *models.Queries, username, kind string, metadata map[string]any, now time.Time) error {
	if kind == "" {
		return ErrEmptyKind
	}
	var mdbts []byte
	if metadata != nil {
		var err error
		mdbts, err = json.Marshal(metadata)
		if err != nil {
			return err
		}
	}
	_, err := q.AddActivityEvent(ctx, models.AddActivityEventParams{
		Username:   username,
		ActionType: kind,
		Metadata:   mdbts,
		CreatedAt:  pgtype.Timestamptz{Valid: true, Time: now},
	})
	return err
}

// LastActivity returns the time of the user's most recent event through the
// given query handle, which may be transaction-scoped. The bool is false
// when no activity was ever recorded.
func LastActivity(ctx context.Context, q *models.Queries, username string) (time.Time, bool, error) {
	ts, err := q.LastActivityTime(ctx, username)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

type nower interface {
	Now() time.Time
}

type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now()
}

// Ledger is the standalone event-recording surface for callers outside
// the grading and item-creation flows, which log inside their own
// transactions.
type Ledger struct {
	Queries *models.Queries
	Nower   nower
}

func NewLedger(queries *models.Queries) *Ledger {
	return &Ledger{Queries: queries, Nower: RealNower{}}
}

func (l *Ledger) RecordEvent(ctx context.Context, username, kind string, metadata map[string]any) error {
	if _, err := l.Queries.GetAccount(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if err := Record(ctx, l.Queries, username, kind, metadata, l.Nower.Now()); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("user", username).Str("kind", kind).Msg("event-recorded")
	return nil
}

// LastActivity returns the time of the user's most recent event. The bool
// is false when no activity was ever recorded.
func (l *Ledger) LastActivity(ctx context.Context, username string) (time.Time, bool, error) {
	return LastActivity(ctx, l.Queries, username)
}
