// Package lifecycle implements the participation contract for intensive
// mode: a rolling productivity score over the activity log, a grace period
// after activation, and the pending-delete freeze with admin pardon. The
// state machine is driven entirely by stored state and the wall clock,
// evaluated lazily at login.
package lifecycle

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

const (
	StatusActive        = "active"
	StatusPendingDelete = "pending_delete"
)

// Score weights per event kind: answering counts once, authoring counts
// double.
const (
	answerWeight = 1
	createWeight = 2
)

var (
	ErrUserNotFound     = errors.New("no such user")
	ErrNotPendingDelete = errors.New("account is not pending deletion")
)

type nower interface {
	Now() time.Time
}

type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now()
}

type Engine struct {
	Config  *config.Config
	Queries *models.Queries
	DBPool  *pgxpool.Pool
	Nower   nower
}

func NewEngine(cfg *config.Config, dbPool *pgxpool.Pool, queries *models.Queries) *Engine {
	return &Engine{cfg, queries, dbPool, RealNower{}}
}

type WindowScore struct {
	Score   int
	Creates int
	Answers int
}

// Score computes the weighted activity score for the user over the given
// trailing window. A user who recently entered intensive mode is scored
// only from their activation date, so they start at zero rather than being
// judged on pre-activation history.
func (e *Engine) Score(ctx context.Context, username string, windowDays int) (WindowScore, error) {
	account, err := e.Queries.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WindowScore{}, ErrUserNotFound
		}
		return WindowScore{}, err
	}
	return scoreWindow(ctx, e.Queries, account, windowDays, e.Nower.Now())
}

func scoreWindow(ctx context.Context, q *models.Queries, account models.Account, windowDays int, now time.Time) (WindowScore, error) {
	windowStart := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	// A non-finite or otherwise unusable start date falls back to the
	// plain trailing window rather than blocking the evaluation.
	if account.IntensiveStartDate.Valid && account.IntensiveStartDate.InfinityModifier == pgtype.Finite {
		if start := account.IntensiveStartDate.Time; start.After(windowStart) {
			windowStart = start
		}
	}
	counts, err := q.WindowActionCounts(ctx, models.WindowActionCountsParams{
		Username: account.Username,
		From:     pgtype.Timestamptz{Valid: true, Time: windowStart},
	})
	if err != nil {
		return WindowScore{}, err
	}
	var ws WindowScore
	for _, c := range counts {
		switch c.ActionType {
		case activity.KindAnswer, activity.KindAnswerSubmitted:
			ws.Answers += int(c.Count)
		case activity.KindCreate:
			ws.Creates += int(c.Count)
		}
	}
	ws.Score = ws.Answers*answerWeight + ws.Creates*createWeight
	return ws, nil
}

// Decision is the outcome of a login evaluation.
type Decision struct {
	Allow  bool
	Status string
	Reason string
}

// EvaluateLogin runs the lifecycle state machine for one authentication
// attempt, before a session is granted. It may start the grace period or
// flip the account to pending_delete.
func (e *Engine) EvaluateLogin(ctx context.Context, username string) (Decision, error) {
	now := e.Nower.Now()
	today := srs.DateOf(now)

	tx, err := e.DBPool.Begin(ctx)
	if err != nil {
		return Decision{}, err
	}
	defer tx.Rollback(ctx)
	qtx := e.Queries.WithTx(tx)

	account, err := qtx.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Decision{}, ErrUserNotFound
		}
		return Decision{}, err
	}

	if account.Status == StatusPendingDelete {
		return Decision{Allow: false, Status: account.Status,
			Reason: "account is frozen pending deletion"}, nil
	}
	if !account.IsApproved {
		return Decision{Allow: false, Status: account.Status,
			Reason: "account pending approval"}, nil
	}
	if !account.IsIntensive {
		return Decision{Allow: true, Status: account.Status}, nil
	}

	windowDays := int(account.QuotaWindowDays)
	if windowDays <= 0 {
		windowDays = e.Config.QuotaWindowDays
	}

	startValid := account.IntensiveStartDate.Valid &&
		account.IntensiveStartDate.InfinityModifier == pgtype.Finite
	if !startValid {
		// First login under the policy: arm the grace period.
		err = qtx.SetIntensiveStartDate(ctx, models.SetIntensiveStartDateParams{
			Username:  username,
			StartDate: pgtype.Date{Valid: true, Time: today},
		})
		if err != nil {
			return Decision{}, err
		}
		if err = tx.Commit(ctx); err != nil {
			return Decision{}, err
		}
		log.Ctx(ctx).Info().Str("user", username).Msg("grace-period-started")
		return Decision{Allow: true, Status: account.Status, Reason: "grace period started"}, nil
	}

	start := srs.DateOf(account.IntensiveStartDate.Time)
	if daysBetween(start, today) < windowDays {
		return Decision{Allow: true, Status: account.Status, Reason: "grace period active"}, nil
	}

	ws, err := scoreWindow(ctx, qtx, account, windowDays, now)
	if err != nil {
		return Decision{}, err
	}
	inactiveDays, everActive, err := inactivityDays(ctx, qtx, username, today)
	if err != nil {
		return Decision{}, err
	}

	if ws.Score < e.Config.MinWindowScore || !everActive || inactiveDays > windowDays {
		err = qtx.SetAccountStatus(ctx, models.SetAccountStatusParams{
			Username: username, Status: StatusPendingDelete})
		if err != nil {
			return Decision{}, err
		}
		if err = tx.Commit(ctx); err != nil {
			return Decision{}, err
		}
		log.Ctx(ctx).Info().Str("user", username).
			Int("score", ws.Score).Int("inactive-days", inactiveDays).
			Msg("account-marked-pending-delete")
		return Decision{Allow: false, Status: StatusPendingDelete,
			Reason: "productivity quota not met"}, nil
	}
	return Decision{Allow: true, Status: account.Status}, nil
}

// Pardon moves a frozen account back to active and logs a pardoned event.
// It does not reset the scoring window; the user must produce activity
// before the next evaluation comes around.
func (e *Engine) Pardon(ctx context.Context, adminUsername, username string) error {
	now := e.Nower.Now()

	tx, err := e.DBPool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	qtx := e.Queries.WithTx(tx)

	account, err := qtx.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if account.Status != StatusPendingDelete {
		return ErrNotPendingDelete
	}
	err = qtx.SetAccountStatus(ctx, models.SetAccountStatusParams{
		Username: username, Status: StatusActive})
	if err != nil {
		return err
	}
	meta := map[string]any{"by": adminUsername}
	if err = activity.Record(ctx, qtx, username, activity.KindPardoned, meta, now); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("user", username).Str("admin", adminUsername).Msg("account-pardoned")
	return nil
}

// Approve marks an account as admin-reviewed, which lets it through the
// login evaluation. Approving an already-approved account is a no-op.
func (e *Engine) Approve(ctx context.Context, adminUsername, username string) error {
	now := e.Nower.Now()

	tx, err := e.DBPool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	qtx := e.Queries.WithTx(tx)

	account, err := qtx.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if account.IsApproved {
		return nil
	}
	err = qtx.SetAccountApproval(ctx, models.SetAccountApprovalParams{
		Username: username, IsApproved: true})
	if err != nil {
		return err
	}
	meta := map[string]any{"by": adminUsername}
	if err = activity.Record(ctx, qtx, username, activity.KindApproved, meta, now); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("user", username).Str("admin", adminUsername).Msg("account-approved")
	return nil
}

// SetIntensive turns the participation contract on or off for a user.
// Turning it off clears the activation date, so re-enabling starts a fresh
// grace period at the next login.
func (e *Engine) SetIntensive(ctx context.Context, username string, on bool, windowDays int) error {
	if windowDays <= 0 {
		windowDays = e.Config.QuotaWindowDays
	}
	if _, err := e.Queries.GetAccount(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return e.Queries.SetIntensiveMode(ctx, models.SetIntensiveModeParams{
		Username:        username,
		IsIntensive:     on,
		QuotaWindowDays: int32(windowDays),
	})
}

// Register creates an account with lifecycle defaults: active, not
// intensive, and unapproved until an admin signs off.
func (e *Engine) Register(ctx context.Context, username, role string) error {
	if username == "" {
		return errors.New("username must not be empty")
	}
	if role == "" {
		role = "user"
	}
	return e.Queries.CreateAccount(ctx, models.CreateAccountParams{
		Username:        username,
		Role:            role,
		QuotaWindowDays: int32(e.Config.QuotaWindowDays),
	})
}

// RemoveAccount permanently deletes a pending-delete account and, through
// the schema's cascades, all of its memory states, items, and activity.
func (e *Engine) RemoveAccount(ctx context.Context, username string) error {
	account, err := e.Queries.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if account.Status != StatusPendingDelete {
		return ErrNotPendingDelete
	}
	_, err = e.Queries.DeleteAccount(ctx, username)
	return err
}

// ListPendingDelete returns the accounts currently frozen, for the admin
// review queue.
func (e *Engine) ListPendingDelete(ctx context.Context) ([]models.Account, error) {
	return e.Queries.ListPendingDeleteAccounts(ctx)
}

func inactivityDays(ctx context.Context, q *models.Queries, username string, today time.Time) (int, bool, error) {
	ts, everActive, err := activity.LastActivity(ctx, q, username)
	if err != nil || !everActive {
		return 0, false, err
	}
	return daysBetween(srs.DateOf(ts), today), true, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
