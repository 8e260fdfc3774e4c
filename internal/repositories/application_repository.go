package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationRepository defines job application storage
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	DueReminders(ctx context.Context, from, until time.Time) ([]models.Application, error)
	ClearReminder(ctx context.Context, id string) (bool, error)
}

type PostgresApplicationRepository struct {
	db *gorm.DB
}

func NewPostgresApplicationRepository(db *gorm.DB) *PostgresApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

// Create inserts the application, returning ErrDuplicate when the user already applied to the job
func (r *PostgresApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = "applied"
	}
	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "job_id"}},
		DoNothing: true,
	}).Create(app)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// DueReminders lists applications with a pending reminder dated within [from, until]
func (r *PostgresApplicationRepository) DueReminders(ctx context.Context, from, until time.Time) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).
		Where("reminder_set = ? AND reminder_date >= ? AND reminder_date <= ?", true, from, until).
		Order("reminder_date ASC").
		Find(&apps).Error
	return apps, err
}

// ClearReminder turns the reminder flag off. cleared is false when another run already did.
func (r *PostgresApplicationRepository) ClearReminder(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ? AND reminder_set = ?", id, true).
		Update("reminder_set", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
