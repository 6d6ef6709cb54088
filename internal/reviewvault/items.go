package reviewvault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

const (
	ItemStatusActive        = "active"
	ItemStatusNeedsRevision = "needs_revision"
)

// ModerateItem flips an item's lifecycle status. Items that are not active
// drop out of every selection tier until restored.
func (s *Server) ModerateItem(ctx context.Context, itemID int64, status string) error {
	if status != ItemStatusActive && status != ItemStatusNeedsRevision {
		return fmt.Errorf("unknown item status %q", status)
	}
	if _, err := s.Queries.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return err
	}
	err := s.Queries.SetItemStatus(ctx, models.SetItemStatusParams{
		ID: itemID, Status: status})
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Int64("item", itemID).Str("status", status).Msg("item-moderated")
	return nil
}

// AdjustKarma applies a vote delta to an item's aggregate karma and returns
// the new value.
func (s *Server) AdjustKarma(ctx context.Context, itemID int64, delta int32) (int32, error) {
	karma, err := s.Queries.AdjustItemKarma(ctx, models.AdjustItemKarmaParams{
		ID: itemID, Delta: delta})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrItemNotFound
		}
		return 0, err
	}
	return karma, nil
}

// ListOwnItems returns the items a user has authored, capped at the
// configured listing limit.
func (s *Server) ListOwnItems(ctx context.Context, username string) ([]models.Item, error) {
	if _, err := s.Queries.GetAccount(ctx, username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Queries.ListItemsByOwner(ctx, models.ListItemsByOwnerParams{
		Owner: username,
		Limit: int32(s.Config.MaxItemsPerTopic),
	})
}
