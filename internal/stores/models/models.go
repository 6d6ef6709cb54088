// Package models contains the query layer for the Postgres store. All core
// state (accounts, items, memory states, the activity log) is accessed
// through Queries so that callers can run any group of reads and writes in
// a single transaction via WithTx.
package models

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type Account struct {
	Username           string
	Role               string
	IsApproved         bool
	Status             string
	IsIntensive        bool
	QuotaWindowDays    int32
	IntensiveStartDate pgtype.Date
	LastActiveDate     pgtype.Date
	CurrentStreak      int32
	TotalActiveDays    int32
	CreatedAt          pgtype.Timestamptz
}

type Item struct {
	ID            int64
	OwnerUsername string
	Prompt        string
	Options       []string
	CorrectOption string
	Explanation   string
	Category      string
	Topic         string
	Status        string
	Karma         int32
	CreatedAt     pgtype.Timestamptz
}

type MemoryState struct {
	Username     string
	ItemID       int64
	Stability    float64
	Difficulty   float64
	IntervalDays int32
	DueDate      pgtype.Date
	LastReview   pgtype.Date
	Successes    int32
	Failures     int32
}

type ActivityEvent struct {
	ID         int64
	Username   string
	ActionType string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
}
