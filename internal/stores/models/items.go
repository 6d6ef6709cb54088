package models

import (
	"context"
)

const createItem = `
INSERT INTO items (owner_username, prompt, options, correct_option, explanation, category, topic)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`

type CreateItemParams struct {
	OwnerUsername string
	Prompt        string
	Options       []string
	CorrectOption string
	Explanation   string
	Category      string
	Topic         string
}

func (q *Queries) CreateItem(ctx context.Context, arg CreateItemParams) (int64, error) {
	row := q.db.QueryRow(ctx, createItem, arg.OwnerUsername, arg.Prompt, arg.Options,
		arg.CorrectOption, arg.Explanation, arg.Category, arg.Topic)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getItem = `
SELECT id, owner_username, prompt, options, correct_option, explanation, category, topic, status, karma, created_at
FROM items WHERE id = $1
`

func (q *Queries) GetItem(ctx context.Context, id int64) (Item, error) {
	row := q.db.QueryRow(ctx, getItem, id)
	var i Item
	err := row.Scan(&i.ID, &i.OwnerUsername, &i.Prompt, &i.Options, &i.CorrectOption,
		&i.Explanation, &i.Category, &i.Topic, &i.Status, &i.Karma, &i.CreatedAt)
	return i, err
}

const setItemStatus = `
UPDATE items SET status = $2 WHERE id = $1
`

type SetItemStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) SetItemStatus(ctx context.Context, arg SetItemStatusParams) error {
	_, err := q.db.Exec(ctx, setItemStatus, arg.ID, arg.Status)
	return err
}

const adjustItemKarma = `
UPDATE items SET karma = karma + $2 WHERE id = $1 RETURNING karma
`

type AdjustItemKarmaParams struct {
	ID    int64
	Delta int32
}

func (q *Queries) AdjustItemKarma(ctx context.Context, arg AdjustItemKarmaParams) (int32, error) {
	row := q.db.QueryRow(ctx, adjustItemKarma, arg.ID, arg.Delta)
	var karma int32
	err := row.Scan(&karma)
	return karma, err
}

const getRandomActiveItem = `
SELECT id FROM items WHERE status = 'active' ORDER BY RANDOM() LIMIT 1
`

func (q *Queries) GetRandomActiveItem(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, getRandomActiveItem)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getRandomActiveItemByTopic = `
SELECT id FROM items WHERE status = 'active' AND topic = $1 ORDER BY RANDOM() LIMIT 1
`

func (q *Queries) GetRandomActiveItemByTopic(ctx context.Context, topic string) (int64, error) {
	row := q.db.QueryRow(ctx, getRandomActiveItemByTopic, topic)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const countActiveItems = `
SELECT COUNT(*) FROM items WHERE status = 'active'
`

func (q *Queries) CountActiveItems(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveItems)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listItemsByOwner = `
SELECT id, owner_username, prompt, options, correct_option, explanation, category, topic, status, karma, created_at
FROM items WHERE owner_username = $1 ORDER BY id LIMIT $2
`

type ListItemsByOwnerParams struct {
	Owner string
	Limit int32
}

func (q *Queries) ListItemsByOwner(ctx context.Context, arg ListItemsByOwnerParams) ([]Item, error) {
	rows, err := q.db.Query(ctx, listItemsByOwner, arg.Owner, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var i Item
		if err := rows.Scan(&i.ID, &i.OwnerUsername, &i.Prompt, &i.Options, &i.CorrectOption,
			&i.Explanation, &i.Category, &i.Topic, &i.Status, &i.Karma, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
