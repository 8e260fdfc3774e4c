package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsRepository defines the points ledger and badge set storage
type StatsRepository interface {
	GetStats(ctx context.Context, userID string) (*models.ActorStats, error)
	Increment(ctx context.Context, userID string, field models.StatField, by int64) (*models.ActorStats, error)
	LogPoints(ctx context.Context, entry *models.PointLog) error
	InsertBadge(ctx context.Context, badge *models.Badge) (bool, error)
	ListBadges(ctx context.Context, userID string) ([]models.Badge, error)
}

// PostgresStatsRepository implements StatsRepository
type PostgresStatsRepository struct {
	db *gorm.DB
}

func NewPostgresStatsRepository(db *gorm.DB) *PostgresStatsRepository {
	return &PostgresStatsRepository{db: db}
}

func (r *PostgresStatsRepository) GetStats(ctx context.Context, userID string) (*models.ActorStats, error) {
	var stats models.ActorStats
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stats, nil
}

// Increment adds by to one counter in place and returns the row as seen right after the update.
// Stats rows are created with the user, so an unknown user is ErrNotFound.
func (r *PostgresStatsRepository) Increment(ctx context.Context, userID string, field models.StatField, by int64) (*models.ActorStats, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unknown stat field %q", field)
	}

	var stats models.ActorStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		col := string(field)
		res := tx.Model(&models.ActorStats{}).Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				col:          gorm.Expr(col+" + ?", by),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("user_id = ?", userID).First(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *PostgresStatsRepository) LogPoints(ctx context.Context, entry *models.PointLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// InsertBadge inserts the badge unless (user_id, name) is already held. created reports whether it was inserted.
func (r *PostgresStatsRepository) InsertBadge(ctx context.Context, badge *models.Badge) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(badge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresStatsRepository) ListBadges(ctx context.Context, userID string) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at ASC, id ASC").Find(&badges).Error
	return badges, err
}
