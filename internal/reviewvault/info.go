package reviewvault

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/k-comunity/prisma_srs/internal/srs"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

// CardInfo is a read-only view of one memory state, with a recall estimate
// for display.
type CardInfo struct {
	State          models.MemoryState
	Retrievability float64
	New            bool
}

func (s *Server) GetCardInfo(ctx context.Context, username string, itemID int64) (CardInfo, error) {
	if _, err := s.Queries.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CardInfo{}, ErrItemNotFound
		}
		return CardInfo{}, err
	}
	row, err := s.Queries.GetMemoryState(ctx, models.GetMemoryStateParams{
		Username: username, ItemID: itemID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CardInfo{New: true}, nil
		}
		return CardInfo{}, err
	}
	return CardInfo{
		State:          row,
		Retrievability: srs.Retrievability(memoryFromRow(row), s.Nower.Now()),
	}, nil
}

// UserStats is the progress readout consumed by the stats page.
type UserStats struct {
	TotalActiveItems int64
	LearnedItems     int64
	OverdueItems     int64
	LearnedByTopic   []models.LearnedItemsByTopicRow
}

func (s *Server) GetUserStats(ctx context.Context, username string) (UserStats, error) {
	if _, err := s.Queries.GetAccount(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserStats{}, ErrUserNotFound
		}
		return UserStats{}, err
	}
	total, err := s.Queries.CountActiveItems(ctx)
	if err != nil {
		return UserStats{}, err
	}
	learned, err := s.Queries.CountLearnedItems(ctx, username)
	if err != nil {
		return UserStats{}, err
	}
	overdue, err := s.Queries.CountOverdue(ctx, models.CountOverdueParams{
		Username: username, Today: toPGDate(s.Nower.Now())})
	if err != nil {
		return UserStats{}, err
	}
	byTopic, err := s.Queries.LearnedItemsByTopic(ctx, username)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{
		TotalActiveItems: total,
		LearnedItems:     learned,
		OverdueItems:     overdue,
		LearnedByTopic:   byTopic,
	}, nil
}
