package reviewvault

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

// Selection is the outcome of picking the next item for a user. Found is
// false when no eligible item exists at all; that is a defined result, not
// an error.
type Selection struct {
	ItemID    int64
	IsAdvance bool
	Found     bool
}

// NextItem picks the next item to present, in priority order: overdue,
// then never-seen, then scheduled-ahead items not yet reviewed today, then
// any active item at all. A non-empty topic bypasses the tiers and picks
// at random within that topic.
func (s *Server) NextItem(ctx context.Context, username, topic string) (Selection, error) {
	if _, err := s.Queries.GetAccount(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Selection{}, ErrUserNotFound
		}
		return Selection{}, err
	}
	today := toPGDate(s.Nower.Now())

	if topic != "" {
		id, err := s.Queries.GetRandomActiveItemByTopic(ctx, topic)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Selection{}, nil
			}
			return Selection{}, err
		}
		return Selection{ItemID: id, Found: true}, nil
	}

	// Tier 1: due work first, most overdue wins; then anything never seen.
	id, err := s.Queries.GetDueItem(ctx, models.GetDueItemParams{
		Username: username, Today: today})
	if err == nil {
		return Selection{ItemID: id, Found: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Selection{}, err
	}
	id, err = s.Queries.GetNewItem(ctx, username)
	if err == nil {
		return Selection{ItemID: id, Found: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Selection{}, err
	}

	// Tier 2: study ahead of schedule, soonest due date first, skipping
	// items already reviewed today.
	id, err = s.Queries.GetAdvanceItem(ctx, models.GetAdvanceItemParams{
		Username: username, Today: today})
	if err == nil {
		return Selection{ItemID: id, IsAdvance: true, Found: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Selection{}, err
	}

	// Tier 3: never show "nothing to do" while any active item exists.
	id, err = s.Queries.GetRandomActiveItem(ctx)
	if err == nil {
		log.Ctx(ctx).Debug().Str("user", username).Msg("selection-fell-through-to-random")
		return Selection{ItemID: id, IsAdvance: true, Found: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Selection{}, err
	}
	return Selection{}, nil
}
