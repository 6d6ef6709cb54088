package models

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getMemoryState = `
SELECT username, item_id, stability, difficulty, interval_days, due_date, last_review, successes, failures
FROM memory_states WHERE username = $1 AND item_id = $2
`

type GetMemoryStateParams struct {
	Username string
	ItemID   int64
}

func (q *Queries) GetMemoryState(ctx context.Context, arg GetMemoryStateParams) (MemoryState, error) {
	row := q.db.QueryRow(ctx, getMemoryState, arg.Username, arg.ItemID)
	var m MemoryState
	err := row.Scan(&m.Username, &m.ItemID, &m.Stability, &m.Difficulty, &m.IntervalDays,
		&m.DueDate, &m.LastReview, &m.Successes, &m.Failures)
	return m, err
}

const upsertMemoryState = `
INSERT INTO memory_states (username, item_id, stability, difficulty, interval_days, due_date, last_review, successes, failures)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (username, item_id) DO UPDATE SET
    stability = excluded.stability,
    difficulty = excluded.difficulty,
    interval_days = excluded.interval_days,
    due_date = excluded.due_date,
    last_review = excluded.last_review,
    successes = excluded.successes,
    failures = excluded.failures
`

type UpsertMemoryStateParams struct {
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

func (q *Queries) UpsertMemoryState(ctx context.Context, arg UpsertMemoryStateParams) error {
	_, err := q.db.Exec(ctx, upsertMemoryState, arg.Username, arg.ItemID, arg.Stability,
		arg.Difficulty, arg.IntervalDays, arg.DueDate, arg.LastReview, arg.Successes, arg.Failures)
	return err
}

// Oldest due date first so the most overdue item wins; RANDOM() breaks ties
// between items due on the same day.
const getDueItem = `
SELECT m.item_id FROM memory_states m
JOIN items i ON i.id = m.item_id
WHERE m.username = $1 AND m.due_date <= $2 AND i.status = 'active'
ORDER BY m.due_date, RANDOM()
LIMIT 1
`

type GetDueItemParams struct {
	Username string
	Today    pgtype.Date
}

func (q *Queries) GetDueItem(ctx context.Context, arg GetDueItemParams) (int64, error) {
	row := q.db.QueryRow(ctx, getDueItem, arg.Username, arg.Today)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getNewItem = `
SELECT i.id FROM items i
LEFT JOIN memory_states m ON m.item_id = i.id AND m.username = $1
WHERE m.item_id IS NULL AND i.status = 'active'
ORDER BY RANDOM()
LIMIT 1
`

func (q *Queries) GetNewItem(ctx context.Context, username string) (int64, error) {
	row := q.db.QueryRow(ctx, getNewItem, username)
	var id int64
	err := row.Scan(&id)
	return id, err
}

// Items scheduled for the future, skipping anything already reviewed today.
const getAdvanceItem = `
SELECT m.item_id FROM memory_states m
JOIN items i ON i.id = m.item_id
WHERE m.username = $1 AND m.due_date > $2 AND i.status = 'active'
    AND (m.last_review IS NULL OR m.last_review < $2)
ORDER BY m.due_date, RANDOM()
LIMIT 1
`

type GetAdvanceItemParams struct {
	Username string
	Today    pgtype.Date
}

func (q *Queries) GetAdvanceItem(ctx context.Context, arg GetAdvanceItemParams) (int64, error) {
	row := q.db.QueryRow(ctx, getAdvanceItem, arg.Username, arg.Today)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const countOverdue = `
SELECT COUNT(*) FROM memory_states m
JOIN items i ON i.id = m.item_id
WHERE m.username = $1 AND m.due_date <= $2 AND i.status = 'active'
`

type CountOverdueParams struct {
	Username string
	Today    pgtype.Date
}

func (q *Queries) CountOverdue(ctx context.Context, arg CountOverdueParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOverdue, arg.Username, arg.Today)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// An item counts as learned once its review gap has grown past a week.
const countLearnedItems = `
SELECT COUNT(*) FROM memory_states WHERE username = $1 AND interval_days > 7
`

func (q *Queries) CountLearnedItems(ctx context.Context, username string) (int64, error) {
	row := q.db.QueryRow(ctx, countLearnedItems, username)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const learnedItemsByTopic = `
SELECT i.topic, COUNT(*) FROM memory_states m
JOIN items i ON i.id = m.item_id
WHERE m.username = $1 AND m.interval_days > 7
GROUP BY i.topic
ORDER BY COUNT(*) DESC
`

type LearnedItemsByTopicRow struct {
	Topic string
	Count int64
}

func (q *Queries) LearnedItemsByTopic(ctx context.Context, username string) ([]LearnedItemsByTopicRow, error) {
	rows, err := q.db.Query(ctx, learnedItemsByTopic, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LearnedItemsByTopicRow
	for rows.Next() {
		var r LearnedItemsByTopicRow
		if err := rows.Scan(&r.Topic, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
