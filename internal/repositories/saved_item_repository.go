package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavedItemRepository defines the operations of the global bookmark index
type SavedItemRepository interface {
	Upsert(ctx context.Context, item *models.SavedItem) (bool, error)
	Delete(ctx context.Context, userID string, kind models.TargetKind, itemID string) (bool, error)
	Exists(ctx context.Context, userID string, kind models.TargetKind, itemID string) (bool, error)
	ListByUser(ctx context.Context, userID string, kind models.TargetKind) ([]models.SavedItem, error)
	Savers(ctx context.Context, kind models.TargetKind, itemID string) ([]string, error)
	SaversByKind(ctx context.Context, kind models.TargetKind) (map[string][]string, error)
}

// PostgresSavedItemRepository implements SavedItemRepository
type PostgresSavedItemRepository struct {
	db *gorm.DB
}

func NewPostgresSavedItemRepository(db *gorm.DB) *PostgresSavedItemRepository {
	return &PostgresSavedItemRepository{db: db}
}

// Upsert inserts the row unless (user_id, item_kind, item_id) already exists.
// created reports whether this call inserted it.
func (r *PostgresSavedItemRepository) Upsert(ctx context.Context, item *models.SavedItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Folder == "" {
		item.Folder = models.DefaultFolder
	}
	if item.SavedAt.IsZero() {
		item.SavedAt = time.Now()
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_kind"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes the row if present. deleted reports whether a row was removed.
func (r *PostgresSavedItemRepository) Delete(ctx context.Context, userID string, kind models.TargetKind, itemID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, kind, itemID).
		Delete(&models.SavedItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresSavedItemRepository) Exists(ctx context.Context, userID string, kind models.TargetKind, itemID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SavedItem{}).
		Where("user_id = ? AND item_kind = ? AND item_id = ?", userID, kind, itemID).
		Count(&count).Error
	return count > 0, err
}

// ListByUser returns the user's saved rows of one kind, newest first
func (r *PostgresSavedItemRepository) ListByUser(ctx context.Context, userID string, kind models.TargetKind) ([]models.SavedItem, error) {
	var saved []models.SavedItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND item_kind = ?", userID, kind).
		Order("saved_at DESC").
		Find(&saved).Error
	return saved, err
}

func (r *PostgresSavedItemRepository) Savers(ctx context.Context, kind models.TargetKind, itemID string) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).Model(&models.SavedItem{}).
		Where("item_kind = ? AND item_id = ?", kind, itemID).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// SaversByKind groups every saver of a kind by item id
func (r *PostgresSavedItemRepository) SaversByKind(ctx context.Context, kind models.TargetKind) (map[string][]string, error) {
	var rows []models.SavedItem
	err := r.db.WithContext(ctx).
		Select("item_id", "user_id").
		Where("item_kind = ?", kind).
		Order("item_id, user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	savers := make(map[string][]string)
	for _, row := range rows {
		savers[row.ItemID] = append(savers[row.ItemID], row.UserID)
	}
	return savers, nil
}
