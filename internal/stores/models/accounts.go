package models

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAccount = `
INSERT INTO accounts (username, role, is_approved, quota_window_days)
VALUES ($1, $2, $3, $4)
`

type CreateAccountParams struct {
	Username        string
	Role            string
	IsApproved      bool
	QuotaWindowDays int32
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.Exec(ctx, createAccount, arg.Username, arg.Role, arg.IsApproved, arg.QuotaWindowDays)
	return err
}

const getAccount = `
SELECT username, role, is_approved, status, is_intensive, quota_window_days,
    intensive_start_date, last_active_date, current_streak, total_active_days, created_at
FROM accounts WHERE username = $1
`

func (q *Queries) GetAccount(ctx context.Context, username string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccount, username)
	var a Account
	err := row.Scan(&a.Username, &a.Role, &a.IsApproved, &a.Status, &a.IsIntensive,
		&a.QuotaWindowDays, &a.IntensiveStartDate, &a.LastActiveDate,
		&a.CurrentStreak, &a.TotalActiveDays, &a.CreatedAt)
	return a, err
}

const setAccountStatus = `
UPDATE accounts SET status = $2 WHERE username = $1
`

type SetAccountStatusParams struct {
	Username string
	Status   string
}

func (q *Queries) SetAccountStatus(ctx context.Context, arg SetAccountStatusParams) error {
	_, err := q.db.Exec(ctx, setAccountStatus, arg.Username, arg.Status)
	return err
}

const setAccountApproval = `
UPDATE accounts SET is_approved = $2 WHERE username = $1
`

type SetAccountApprovalParams struct {
	Username   string
	IsApproved bool
}

func (q *Queries) SetAccountApproval(ctx context.Context, arg SetAccountApprovalParams) error {
	_, err := q.db.Exec(ctx, setAccountApproval, arg.Username, arg.IsApproved)
	return err
}

const setIntensiveMode = `
UPDATE accounts
SET is_intensive = $2,
    quota_window_days = $3,
    intensive_start_date = CASE WHEN $2 THEN intensive_start_date ELSE NULL END
WHERE username = $1
`

type SetIntensiveModeParams struct {
	Username        string
	IsIntensive     bool
	QuotaWindowDays int32
}

func (q *Queries) SetIntensiveMode(ctx context.Context, arg SetIntensiveModeParams) error {
	_, err := q.db.Exec(ctx, setIntensiveMode, arg.Username, arg.IsIntensive, arg.QuotaWindowDays)
	return err
}

const setIntensiveStartDate = `
UPDATE accounts SET intensive_start_date = $2 WHERE username = $1
`

type SetIntensiveStartDateParams struct {
	Username  string
	StartDate pgtype.Date
}

func (q *Queries) SetIntensiveStartDate(ctx context.Context, arg SetIntensiveStartDateParams) error {
	_, err := q.db.Exec(ctx, setIntensiveStartDate, arg.Username, arg.StartDate)
	return err
}

const updateStreak = `
UPDATE accounts
SET last_active_date = $2, current_streak = $3, total_active_days = $4
WHERE username = $1
`

type UpdateStreakParams struct {
	Username        string
	LastActiveDate  pgtype.Date
	CurrentStreak   int32
	TotalActiveDays int32
}

func (q *Queries) UpdateStreak(ctx context.Context, arg UpdateStreakParams) error {
	_, err := q.db.Exec(ctx, updateStreak, arg.Username, arg.LastActiveDate,
		arg.CurrentStreak, arg.TotalActiveDays)
	return err
}

const deleteAccount = `
DELETE FROM accounts WHERE username = $1
`

// DeleteAccount permanently removes a user. Items, memory states and
// activity rows go with it via ON DELETE CASCADE.
func (q *Queries) DeleteAccount(ctx context.Context, username string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAccount, username)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listPendingDeleteAccounts = `
SELECT username, role, is_approved, status, is_intensive, quota_window_days,
    intensive_start_date, last_active_date, current_streak, total_active_days, created_at
FROM accounts WHERE status = 'pending_delete' ORDER BY username
`

func (q *Queries) ListPendingDeleteAccounts(ctx context.Context) ([]Account, error) {
	rows, err := q.db.Query(ctx, listPendingDeleteAccounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Username, &a.Role, &a.IsApproved, &a.Status, &a.IsIntensive,
			&a.QuotaWindowDays, &a.IntensiveStartDate, &a.LastActiveDate,
			&a.CurrentStreak, &a.TotalActiveDays, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
