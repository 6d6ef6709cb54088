// Package legacyimport converts a study database from the retired SQLite
// deployment into the current PostgreSQL schema. The old scheduler only
// stored an interval and a due date per (user, question) pair, so the
// richer memory parameters are reconstructed from those.
package legacyimport

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/internal/srs"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

// The old app concatenated answer options into one column with this
// separator.
const optionSeparator = "|"

// The old scheduler derived intervals as round(stability * 0.9), so the
// inverse seeds a plausible stability from a stored interval.
const intervalFactor = 0.9

// Stats reports what one import run brought over.
type Stats struct {
	Accounts     int
	Items        int
	MemoryStates int
	Skipped      int
}

// Run reads the legacy SQLite file and inserts its users, questions and
// progress rows into PostgreSQL in a single transaction. Question ids are
// reassigned; progress rows referencing questions that no longer exist are
// counted as skipped rather than failing the run.
func Run(ctx context.Context, queries *models.Queries, dbPool *pgxpool.Pool, sqliteFilename string, now time.Time) (Stats, error) {
	var stats Stats

	sqliteDB, err := sql.Open("sqlite3", sqliteFilename)
	if err != nil {
		return stats, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer sqliteDB.Close()

	tx, err := dbPool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	qtx := queries.WithTx(tx)

	if err = importUsers(ctx, sqliteDB, qtx, &stats); err != nil {
		return stats, err
	}
	// Old question id -> new item id, for the progress pass.
	itemIDs, err := importQuestions(ctx, sqliteDB, qtx, &stats)
	if err != nil {
		return stats, err
	}
	if err = importProgress(ctx, sqliteDB, qtx, itemIDs, now, &stats); err != nil {
		return stats, err
	}

	if err = tx.Commit(ctx); err != nil {
		return stats, err
	}
	log.Ctx(ctx).Info().
		Int("accounts", stats.Accounts).
		Int("items", stats.Items).
		Int("memory-states", stats.MemoryStates).
		Int("skipped", stats.Skipped).
		Msg("legacy-import-done")
	return stats, nil
}

func importUsers(ctx context.Context, sqliteDB *sql.DB, qtx *models.Queries, stats *Stats) error {
	rows, err := sqliteDB.QueryContext(ctx,
		`SELECT username, role, COALESCE(is_approved, 0) FROM users`)
	if err != nil {
		return fmt.Errorf("failed to fetch users from SQLite: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			username, role string
			approved       int
		)
		if err := rows.Scan(&username, &role, &approved); err != nil {
			return fmt.Errorf("failed to scan user: %w", err)
		}
		err = qtx.CreateAccount(ctx, models.CreateAccountParams{
			Username:        username,
			Role:            role,
			IsApproved:      approved != 0,
			QuotaWindowDays: 7,
		})
		if err != nil {
			return fmt.Errorf("failed to insert account %s: %w", username, err)
		}
		stats.Accounts++
	}
	return rows.Err()
}

func importQuestions(ctx context.Context, sqliteDB *sql.DB, qtx *models.Queries, stats *Stats) (map[int64]int64, error) {
	rows, err := sqliteDB.QueryContext(ctx, `
        SELECT id, owner_username, enunciado, opciones, correcta, retroalimentacion,
               COALESCE(tag_categoria, ''), COALESCE(tag_tema, '')
        FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions from SQLite: %w", err)
	}
	defer rows.Close()

	itemIDs := map[int64]int64{}
	for rows.Next() {
		var (
			oldID                           int64
			owner, prompt, options, correct string
			explanation, category, topic    string
		)
		if err := rows.Scan(&oldID, &owner, &prompt, &options, &correct,
			&explanation, &category, &topic); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		newID, err := qtx.CreateItem(ctx, models.CreateItemParams{
			OwnerUsername: owner,
			Prompt:        prompt,
			Options:       strings.Split(options, optionSeparator),
			CorrectOption: correct,
			Explanation:   explanation,
			Category:      category,
			Topic:         topic,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert item (old id %d): %w", oldID, err)
		}
		itemIDs[oldID] = newID
		stats.Items++
	}
	return itemIDs, rows.Err()
}

func importProgress(ctx context.Context, sqliteDB *sql.DB, qtx *models.Queries,
	itemIDs map[int64]int64, now time.Time, stats *Stats) error {
	rows, err := sqliteDB.QueryContext(ctx, `
        SELECT username, question_id, due_date, interval, aciertos, fallos
        FROM progress`)
	if err != nil {
		return fmt.Errorf("failed to fetch progress from SQLite: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			username, dueStr    string
			questionID          int64
			interval            int
			successes, failures int
		)
		if err := rows.Scan(&username, &questionID, &dueStr, &interval,
			&successes, &failures); err != nil {
			return fmt.Errorf("failed to scan progress: %w", err)
		}
		itemID, ok := itemIDs[questionID]
		if !ok {
			log.Ctx(ctx).Info().Int64("question-id", questionID).Str("user", username).
				Msg("did not import, question missing")
			stats.Skipped++
			continue
		}
		mem := reconstructMemory(interval, successes, failures, parseLegacyDate(dueStr, now))
		err = qtx.UpsertMemoryState(ctx, models.UpsertMemoryStateParams{
			Username:     username,
			ItemID:       itemID,
			Stability:    mem.Stability,
			Difficulty:   mem.Difficulty,
			IntervalDays: int32(mem.Interval),
			DueDate:      pgtype.Date{Valid: true, Time: mem.Due},
			LastReview:   pgtype.Date{Valid: true, Time: mem.LastReview},
			Successes:    int32(mem.Successes),
			Failures:     int32(mem.Failures),
		})
		if err != nil {
			return fmt.Errorf("failed to insert memory state for %s/%d: %w", username, itemID, err)
		}
		stats.MemoryStates++
	}
	return rows.Err()
}

// reconstructMemory backfills scheduler parameters from what the old app
// stored. Stability is the inverse of the interval rule and difficulty is
// the new-item seed, so the first real review after the migration takes
// over smoothly.
func reconstructMemory(interval, successes, failures int, due time.Time) srs.Memory {
	if interval < 1 {
		interval = 1
	}
	return srs.Memory{
		Stability:  float64(interval) / intervalFactor,
		Difficulty: 5.0,
		Interval:   interval,
		Due:        due,
		LastReview: due.AddDate(0, 0, -interval),
		Successes:  successes,
		Failures:   failures,
	}
}

// parseLegacyDate accepts the date formats the old app wrote over its
// lifetime. An unparseable date schedules the item for today instead of
// aborting a whole migration.
func parseLegacyDate(s string, now time.Time) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return srs.DateOf(t)
		}
	}
	return srs.DateOf(now)
}
