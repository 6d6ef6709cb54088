package models

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const addActivityEvent = `
INSERT INTO activity_log (username, action_type, metadata, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`

type AddActivityEventParams struct {
	Username   string
	ActionType string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
}

func (q *Queries) AddActivityEvent(ctx context.Context, arg AddActivityEventParams) (int64, error) {
	row := q.db.QueryRow(ctx, addActivityEvent, arg.Username, arg.ActionType, arg.Metadata, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const windowActionCounts = `
SELECT action_type, COUNT(*) FROM activity_log
WHERE username = $1 AND created_at >= $2
GROUP BY action_type
`

type WindowActionCountsParams struct {
	Username string
	From     pgtype.Timestamptz
}

type WindowActionCountsRow struct {
	ActionType string
	Count      int64
}

func (q *Queries) WindowActionCounts(ctx context.Context, arg WindowActionCountsParams) ([]WindowActionCountsRow, error) {
	rows, err := q.db.Query(ctx, windowActionCounts, arg.Username, arg.From)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WindowActionCountsRow
	for rows.Next() {
		var r WindowActionCountsRow
		if err := rows.Scan(&r.ActionType, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const lastActivityTime = `
SELECT MAX(created_at) FROM activity_log WHERE username = $1
`

func (q *Queries) LastActivityTime(ctx context.Context, username string) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, lastActivityTime, username)
	var ts pgtype.Timestamptz
	err := row.Scan(&ts)
	return ts, err
}

const listRecentEvents = `
SELECT id, username, action_type, metadata, created_at FROM activity_log
WHERE username = $1 ORDER BY id DESC LIMIT $2
`

type ListRecentEventsParams struct {
	Username string
	Limit    int32
}

func (q *Queries) ListRecentEvents(ctx context.Context, arg ListRecentEventsParams) ([]ActivityEvent, error) {
	rows, err := q.db.Query(ctx, listRecentEvents, arg.Username, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []ActivityEvent
	for rows.Next() {
		var e ActivityEvent
		if err := rows.Scan(&e.ID, &e.Username, &e.ActionType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
