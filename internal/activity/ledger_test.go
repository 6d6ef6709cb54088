package activity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/matryer/is"

	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

// fakeDB satisfies models.DBTX and captures the last QueryRow call, so the
// argument marshaling can be checked without a database.
type fakeDB struct {
	sql  string
	args []any
	scan func(dest ...any) error
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	f.sql = sql
	f.args = args
	return fakeRow{scan: f.scan}
}

func TestRecordRejectsEmptyKind(t *testing.T) {
	is := is.New(t)
	err := Record(context.Background(), nil, "cesar", "", nil, time.Now())
	is.Equal(err, ErrEmptyKind)
}

func TestRecordMarshalsMetadata(t *testing.T) {
	is := is.New(t)
	db := &fakeDB{scan: func(dest ...any) error {
		*(dest[0].(*int64)) = 1
		return nil
	}}
	q := models.New(db)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	err := Record(context.Background(), q, "cesar", KindAnswer,
		map[string]any{"result": "correct"}, at)
	is.NoErr(err)
	is.Equal(len(db.args), 4)
	is.Equal(db.args[0], "cesar")
	is.Equal(db.args[1], KindAnswer)
	is.Equal(string(db.args[2].([]byte)), `{"result":"correct"}`)
	ts := db.args[3].(pgtype.Timestamptz)
	is.True(ts.Valid)
	is.Equal(ts.Time, at)
}

func TestRecordNilMetadata(t *testing.T) {
	is := is.New(t)
	db := &fakeDB{scan: func(dest ...any) error {
		*(dest[0].(*int64)) = 1
		return nil
	}}
	q := models.New(db)

	is.NoErr(Record(context.Background(), q, "cesar", KindCreate, nil, time.Now()))
	// A nil map stays a NULL column rather than the JSON string "null".
	is.Equal(db.args[2], []byte(nil))
}

func TestLastActivity(t *testing.T) {
	is := is.New(t)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{scan: func(dest ...any) error {
		*(dest[0].(*pgtype.Timestamptz)) = pgtype.Timestamptz{Valid: true, Time: at}
		return nil
	}}
	l := NewLedger(models.New(db))

	ts, everActive, err := l.LastActivity(context.Background(), "cesar")
	is.NoErr(err)
	is.True(everActive)
	is.Equal(ts, at)
}

func TestLastActivityNeverActive(t *testing.T) {
	is := is.New(t)
	// max() over an empty log scans as an invalid timestamp.
	db := &fakeDB{scan: func(dest ...any) error { return nil }}
	l := NewLedger(models.New(db))

	_, everActive, err := l.LastActivity(context.Background(), "cesar")
	is.NoErr(err)
	is.Equal(everActive, false)
}
