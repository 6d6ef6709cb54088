package lifecycle

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/matryer/is"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/config"
	"github.com/k-comunity/prisma_srs/internal/activity"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

var DefaultConfig = &config.Config{
	DBMigrationsPath: os.Getenv("DB_MIGRATIONS_PATH"),
	MinWindowScore:   30,
	QuotaWindowDays:  7,
}

func testDBURI(useDBName bool) string {
	user := os.Getenv("TEST_DBUSER")
	pass := os.Getenv("TEST_DBPASSWORD")
	dbname := os.Getenv("TEST_DBNAME")
	dbhost := os.Getenv("TEST_DBHOST")
	dbport := os.Getenv("TEST_DBPORT")
	sslmode := os.Getenv("TEST_DBSSLMODE")

	if !useDBName {
		dbname = ""
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, dbhost, dbport, dbname, sslmode)
}

func RecreateTestDB() error {
	ctx := context.Background()
	db, err := pgx.Connect(ctx, testDBURI(false))
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	_, err = db.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", os.Getenv("TEST_DBNAME")))
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", os.Getenv("TEST_DBNAME")))
	if err != nil {
		return err
	}
	m, err := migrate.New(DefaultConfig.DBMigrationsPath, testDBURI(true))
	if err != nil {
		log.Err(err).Msg("on-new")
		return err
	}
	if err := m.Up(); err != nil {
		log.Err(err).Msg("on-up")
		return err
	}
	m.Close()
	return nil
}

type FakeNower struct{ fakenow time.Time }

func (f FakeNower) Now() time.Time {
	return f.fakenow
}

func testEngine(t *testing.T) (*Engine, *FakeNower, *pgxpool.Pool) {
	t.Helper()
	err := RecreateTestDB()
	if err != nil {
		panic(err)
	}
	dbPool, err := pgxpool.New(context.Background(), testDBURI(true))
	if err != nil {
		panic(err)
	}
	q := models.New(dbPool)
	e := NewEngine(DefaultConfig, dbPool, q)
	fakenower := &FakeNower{}
	e.Nower = fakenower
	return e, fakenower, dbPool
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

// registerApproved creates an account and flips the approval flag directly,
// without the ledger event Approve would add, so scoring scenarios stay
// exact.
func registerApproved(ctx context.Context, e *Engine, username string) error {
	if err := e.Register(ctx, username, "user"); err != nil {
		return err
	}
	return e.Queries.SetAccountApproval(ctx, models.SetAccountApprovalParams{
		Username: username, IsApproved: true})
}

// logEvents backfills the activity needed by a scoring scenario, at the
// given timestamp.
func logEvents(ctx context.Context, q *models.Queries, username, kind string, n int, at time.Time) error {
	for i := 0; i < n; i++ {
		if err := activity.Record(ctx, q, username, kind, nil, at); err != nil {
			return err
		}
	}
	return nil
}

func TestScoreWeights(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(e.Register(ctx, "maria", "user"))
	at := mustParse(t, "2025-03-10T12:00:00Z")
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindAnswer, 10, at))
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindCreate, 5, at))

	fakenower.fakenow = mustParse(t, "2025-03-12T12:00:00Z")
	ws, err := e.Score(ctx, "maria", 7)
	is.NoErr(err)
	is.Equal(ws.Answers, 10)
	is.Equal(ws.Creates, 5)
	// 10*1 + 5*2
	is.Equal(ws.Score, 20)

	// Events older than the window stop counting.
	fakenower.fakenow = mustParse(t, "2025-03-20T12:00:00Z")
	ws, err = e.Score(ctx, "maria", 7)
	is.NoErr(err)
	is.Equal(ws.Score, 0)

	_, err = e.Score(ctx, "nobody", 7)
	is.Equal(err, ErrUserNotFound)
}

func TestEvaluateLoginNonIntensive(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	fakenower.fakenow = mustParse(t, "2025-03-10T12:00:00Z")

	// Without intensive mode there is no quota at all.
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.True(d.Allow)
	is.Equal(d.Status, StatusActive)
}

func TestEvaluateLoginApprovalGate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(e.Register(ctx, "maria", "user"))
	fakenower.fakenow = mustParse(t, "2025-03-10T12:00:00Z")

	// A fresh registration waits for an admin before any session.
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.Equal(d.Allow, false)
	is.Equal(d.Reason, "account pending approval")

	is.NoErr(e.Approve(ctx, "admin", "maria"))
	d, err = e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.True(d.Allow)

	// The approval itself is in the ledger.
	events, err := e.Queries.ListRecentEvents(ctx, models.ListRecentEventsParams{
		Username: "maria", Limit: 1})
	is.NoErr(err)
	is.Equal(events[0].ActionType, activity.KindApproved)

	// Approving again is a quiet no-op.
	is.NoErr(e.Approve(ctx, "admin", "maria"))

	err = e.Approve(ctx, "admin", "nobody")
	is.Equal(err, ErrUserNotFound)
}

func TestEvaluateLoginGracePeriod(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 7))

	// First login arms the window; the user gets in with zero score.
	fakenower.fakenow = mustParse(t, "2025-03-10T12:00:00Z")
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.True(d.Allow)
	is.Equal(d.Reason, "grace period started")

	account, err := e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.True(account.IntensiveStartDate.Valid)
	is.Equal(account.IntensiveStartDate.Time.Format("2006-01-02"), "2025-03-10")

	// A second login the same week does not rearm the window and still
	// passes with no activity at all.
	fakenower.fakenow = mustParse(t, "2025-03-14T12:00:00Z")
	d, err = e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.True(d.Allow)
	is.Equal(d.Reason, "grace period active")

	account, err = e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.Equal(account.IntensiveStartDate.Time.Format("2006-01-02"), "2025-03-10")
}

func TestEvaluateLoginQuotaMiss(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 7))
	fakenower.fakenow = mustParse(t, "2025-03-10T12:00:00Z")
	_, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)

	// 10 answers and 5 creates score 20, short of the 30 needed.
	at := mustParse(t, "2025-03-12T12:00:00Z")
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindAnswer, 10, at))
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindCreate, 5, at))

	fakenower.fakenow = mustParse(t, "2025-03-17T12:00:00Z")
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.Equal(d.Allow, false)
	is.Equal(d.Status, StatusPendingDelete)

	account, err := e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.Equal(account.Status, StatusPendingDelete)

	// Frozen accounts stay frozen at the next attempt.
	d, err = e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.Equal(d.Allow, false)
}

func TestEvaluateLoginQuotaMet(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 7))
	fakenower.fakenow = mustParse(t, "2025-03-10T12:00:00Z")
	_, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)

	// 20 answers and 5 creates score 30, right on the bar.
	at := mustParse(t, "2025-03-15T12:00:00Z")
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindAnswer, 20, at))
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindCreate, 5, at))

	fakenower.fakenow = mustParse(t, "2025-03-17T12:00:00Z")
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.True(d.Allow)
	is.Equal(d.Status, StatusActive)
}

func TestEvaluateLoginInactivity(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 7))
	fakenower.fakenow = mustParse(t, "2025-03-01T12:00:00Z")
	_, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)

	// Piles of activity, but all of it long ago: the inactivity rule
	// trips even though old events no longer score anyway.
	at := mustParse(t, "2025-03-02T12:00:00Z")
	is.NoErr(logEvents(ctx, e.Queries, "maria", activity.KindAnswer, 50, at))

	fakenower.fakenow = mustParse(t, "2025-03-20T12:00:00Z")
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.Equal(d.Allow, false)
	is.Equal(d.Status, StatusPendingDelete)
}

func TestPardon(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 7))
	fakenower.fakenow = mustParse(t, "2025-03-01T12:00:00Z")
	_, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)

	// Pardoning an account that is not frozen is refused.
	err = e.Pardon(ctx, "admin", "maria")
	is.Equal(err, ErrNotPendingDelete)

	fakenower.fakenow = mustParse(t, "2025-03-20T12:00:00Z")
	d, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)
	is.Equal(d.Allow, false)

	is.NoErr(e.Pardon(ctx, "admin", "maria"))
	account, err := e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.Equal(account.Status, StatusActive)

	// The pardon itself is in the ledger and counts as activity, so the
	// user is no longer inactive. They still have to earn the score
	// before the window next closes, but today they get in.
	events, err := e.Queries.ListRecentEvents(ctx, models.ListRecentEventsParams{
		Username: "maria", Limit: 1})
	is.NoErr(err)
	is.Equal(events[0].ActionType, activity.KindPardoned)

	err = e.Pardon(ctx, "admin", "nobody")
	is.Equal(err, ErrUserNotFound)
}

func TestSetIntensiveClearsStartDate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(registerApproved(ctx, e, "maria"))
	is.NoErr(e.SetIntensive(ctx, "maria", true, 14))
	fakenower.fakenow = mustParse(t, "2025-03-01T12:00:00Z")
	_, err := e.EvaluateLogin(ctx, "maria")
	is.NoErr(err)

	account, err := e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.Equal(account.QuotaWindowDays, int32(14))
	is.True(account.IntensiveStartDate.Valid)

	// Deactivation wipes the window so a later re-activation starts a
	// fresh grace period.
	is.NoErr(e.SetIntensive(ctx, "maria", false, 0))
	account, err = e.Queries.GetAccount(ctx, "maria")
	is.NoErr(err)
	is.Equal(account.IsIntensive, false)
	is.Equal(account.IntensiveStartDate.Valid, false)
}

func TestRemoveAccount(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	e, fakenower, dbPool := testEngine(t)
	defer dbPool.Close()

	is.NoErr(e.Register(ctx, "maria", "user"))
	fakenower.fakenow = mustParse(t, "2025-03-01T12:00:00Z")

	// Deleting an account that was never frozen is refused.
	err := e.RemoveAccount(ctx, "maria")
	is.Equal(err, ErrNotPendingDelete)

	is.NoErr(e.Queries.SetAccountStatus(ctx, models.SetAccountStatusParams{
		Username: "maria", Status: StatusPendingDelete}))
	is.NoErr(e.RemoveAccount(ctx, "maria"))

	_, err = e.Queries.GetAccount(ctx, "maria")
	is.Equal(err, pgx.ErrNoRows)
}
