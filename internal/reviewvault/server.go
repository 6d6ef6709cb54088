// Package reviewvault is the review scheduling engine: it owns the memory
// state for every (user, item) pair, grades reviews, and picks the next
// item to show.
package reviewvault

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/config"
	"github.com/k-comunity/prisma_srs/internal/activity"
	"github.com/k-comunity/prisma_srs/internal/srs"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

var (
	ErrUserNotFound = errors.New("no such user")
	ErrItemNotFound = errors.New("item with your input parameters was not found")
)

type nower interface {
	Now() time.Time
}

type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now()
}

type Server struct {
	Config  *config.Config
	Queries *models.Queries
	DBPool  *pgxpool.Pool
	Nower   nower
}

func NewServer(cfg *config.Config, dbPool *pgxpool.Pool, queries *models.Queries) *Server {
	return &Server{cfg, queries, dbPool, RealNower{}}
}

func toPGDate(t time.Time) pgtype.Date {
	return pgtype.Date{Valid: true, Time: srs.DateOf(t)}
}

func memoryFromRow(row models.MemoryState) srs.Memory {
	m := srs.Memory{
		Stability:  row.Stability,
		Difficulty: row.Difficulty,
		Interval:   int(row.IntervalDays),
		Successes:  int(row.Successes),
		Failures:   int(row.Failures),
	}
	if row.DueDate.Valid {
		m.Due = row.DueDate.Time
	}
	if row.LastReview.Valid {
		m.LastReview = row.LastReview.Time
	}
	return m
}

// Grade applies one rating to the memory state for (username, itemID),
// appends an answer event, and touches the streak tracker, all in one
// transaction. extraMeta is merged into the answer event's metadata
// (elapsed seconds, correctness and the like from the answering flow).
func (s *Server) Grade(ctx context.Context, username string, itemID int64, rating string, extraMeta map[string]any) (models.MemoryState, error) {
	r, err := srs.ParseRating(rating)
	if err != nil {
		return models.MemoryState{}, err
	}
	now := s.Nower.Now()

	tx, err := s.DBPool.Begin(ctx)
	if err != nil {
		return models.MemoryState{}, err
	}
	defer tx.Rollback(ctx)
	qtx := s.Queries.WithTx(tx)

	account, err := qtx.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MemoryState{}, ErrUserNotFound
		}
		return models.MemoryState{}, err
	}
	if _, err = qtx.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MemoryState{}, ErrItemNotFound
		}
		return models.MemoryState{}, err
	}

	var prev *srs.Memory
	prevRow, err := qtx.GetMemoryState(ctx, models.GetMemoryStateParams{
		Username: username, ItemID: itemID})
	if err == nil {
		m := memoryFromRow(prevRow)
		prev = &m
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return models.MemoryState{}, err
	}

	mem, err := srs.Review(prev, r, now)
	if err != nil {
		return models.MemoryState{}, err
	}

	newRow := models.MemoryState{
		Username:     username,
		ItemID:       itemID,
		Stability:    mem.Stability,
		Difficulty:   mem.Difficulty,
		IntervalDays: int32(mem.Interval),
		DueDate:      toPGDate(mem.Due),
		LastReview:   toPGDate(mem.LastReview),
		Successes:    int32(mem.Successes),
		Failures:     int32(mem.Failures),
	}
	err = qtx.UpsertMemoryState(ctx, models.UpsertMemoryStateParams{
		Username:     newRow.Username,
		ItemID:       newRow.ItemID,
		Stability:    newRow.Stability,
		Difficulty:   newRow.Difficulty,
		IntervalDays: newRow.IntervalDays,
		DueDate:      newRow.DueDate,
		LastReview:   newRow.LastReview,
		Successes:    newRow.Successes,
		Failures:     newRow.Failures,
	})
	if err != nil {
		return models.MemoryState{}, err
	}

	meta := map[string]any{"item_id": itemID, "rating": r.String()}
	for k, v := range extraMeta {
		meta[k] = v
	}
	if err = activity.Record(ctx, qtx, username, activity.KindAnswer, meta, now); err != nil {
		return models.MemoryState{}, err
	}
	if err = s.touchStreak(ctx, qtx, account, now); err != nil {
		return models.MemoryState{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.MemoryState{}, err
	}

	log.Ctx(ctx).Info().Str("user", username).Int64("item", itemID).
		Str("rating", r.String()).
		Float64("stability", mem.Stability).
		Float64("difficulty", mem.Difficulty).
		Int("interval", mem.Interval).
		Str("due", mem.Due.Format("2006-01-02")).Msg("item-graded")

	return newRow, nil
}

// CreateItem stores a user-authored item, appends a create event (weight 2
// in scoring), and touches the streak tracker.
func (s *Server) CreateItem(ctx context.Context, arg models.CreateItemParams) (int64, error) {
	now := s.Nower.Now()

	tx, err := s.DBPool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	qtx := s.Queries.WithTx(tx)

	account, err := qtx.GetAccount(ctx, arg.OwnerUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	id, err := qtx.CreateItem(ctx, arg)
	if err != nil {
		return 0, err
	}
	meta := map[string]any{"item_id": id, "topic": arg.Topic}
	if err = activity.Record(ctx, qtx, arg.OwnerUsername, activity.KindCreate, meta, now); err != nil {
		return 0, err
	}
	if err = s.touchStreak(ctx, qtx, account, now); err != nil {
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	log.Ctx(ctx).Info().Str("user", arg.OwnerUsername).Int64("item", id).Msg("item-created")
	return id, nil
}

// touchStreak applies the per-day streak update for one study action. The
// date machine itself makes repeat calls on the same day no-ops.
func (s *Server) touchStreak(ctx context.Context, q *models.Queries, account models.Account, now time.Time) error {
	streak := srs.Streak{
		Current:   int(account.CurrentStreak),
		TotalDays: int(account.TotalActiveDays),
	}
	if account.LastActiveDate.Valid {
		streak.LastActive = account.LastActiveDate.Time
	}
	updated, changed := streak.Touch(now)
	if !changed {
		return nil
	}
	return q.UpdateStreak(ctx, models.UpdateStreakParams{
		Username:        account.Username,
		LastActiveDate:  toPGDate(updated.LastActive),
		CurrentStreak:   int32(updated.Current),
		TotalActiveDays: int32(updated.TotalDays),
	})
}
