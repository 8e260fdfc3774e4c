package services

import (
	"context"
	"fmt"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"go.uber.org/zap"
)

// BookmarkIndex is the authoritative (actor, kind, id) registry of saved items.
type BookmarkIndex struct {
	saved  repositories.SavedItemRepository
	logger *zap.Logger
}

func NewBookmarkIndex(saved repositories.SavedItemRepository, logger *zap.Logger) *BookmarkIndex {
	return &BookmarkIndex{saved: saved, logger: logger.Named("bookmarks")}
}

// UpsertSaved inserts the row if absent. Repeating it is a no-op; created reports the transition.
func (b *BookmarkIndex) UpsertSaved(ctx context.Context, actorID string, ref models.TargetRef) (bool, error) {
	created, err := b.saved.Upsert(ctx, &models.SavedItem{
		UserID:   actorID,
		ItemKind: ref.Kind,
		ItemID:   ref.ID,
		Folder:   models.DefaultFolder,
	})
	if err != nil {
		return false, fmt.Errorf("upsert saved item %s: %w", ref, err)
	}
	if !created {
		b.logger.Debug("Saved item already present", zap.String("actor", actorID), zap.Stringer("target", ref))
	}
	return created, nil
}

// RemoveSaved deletes the row if present. removed reports the transition.
func (b *BookmarkIndex) RemoveSaved(ctx context.Context, actorID string, ref models.TargetRef) (bool, error) {
	removed, err := b.saved.Delete(ctx, actorID, ref.Kind, ref.ID)
	if err != nil {
		return false, fmt.Errorf("remove saved item %s: %w", ref, err)
	}
	return removed, nil
}

func (b *BookmarkIndex) IsSaved(ctx context.Context, actorID string, ref models.TargetRef) (bool, error) {
	return b.saved.Exists(ctx, actorID, ref.Kind, ref.ID)
}

// ListSaved returns the saved item ids of one kind, newest first. Callers resolve
// them against the content store and drop the ones that no longer qualify.
func (b *BookmarkIndex) ListSaved(ctx context.Context, actorID string, kind models.TargetKind) ([]string, error) {
	rows, err := b.saved.ListByUser(ctx, actorID, kind)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ItemID
	}
	return ids, nil
}

// Savers lists the actors that saved one item.
func (b *BookmarkIndex) Savers(ctx context.Context, ref models.TargetRef) ([]string, error) {
	return b.saved.Savers(ctx, ref.Kind, ref.ID)
}

// SaversByKind groups the savers of every item of one kind.
func (b *BookmarkIndex) SaversByKind(ctx context.Context, kind models.TargetKind) (map[string][]string, error) {
	return b.saved.SaversByKind(ctx, kind)
}
