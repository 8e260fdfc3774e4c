package models

import "time"

// ActorStats holds the gamification counters of one user (PostgreSQL).
// Rows are only changed with in-place increments.
type ActorStats struct {
	UserID              string    `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	ResourcesDownloaded int64     `json:"resources_downloaded" gorm:"not null;default:0"`
	ContributionsMade   int64     `json:"contributions_made" gorm:"not null;default:0"`
	HelpfulAnswers      int64     `json:"helpful_answers" gorm:"not null;default:0"`
	Points              int64     `json:"points" gorm:"not null;default:0"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// StatField names an incrementable counter column of ActorStats
type StatField string

const (
	StatResourcesDownloaded StatField = "resources_downloaded"
	StatContributionsMade   StatField = "contributions_made"
	StatHelpfulAnswers      StatField = "helpful_answers"
	StatPoints              StatField = "points"
)

func (f StatField) Valid() bool {
	switch f {
	case StatResourcesDownloaded, StatContributionsMade, StatHelpfulAnswers, StatPoints:
		return true
	}
	return false
}

// Value reads the counter named by f.
func (s ActorStats) Value(f StatField) int64 {
	switch f {
	case StatResourcesDownloaded:
		return s.ResourcesDownloaded
	case StatContributionsMade:
		return s.ContributionsMade
	case StatHelpfulAnswers:
		return s.HelpfulAnswers
	case StatPoints:
		return s.Points
	}
	return 0
}

// PointLog records a single points award
type PointLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;index:idx_point_log_user_date,priority:1"`
	Reason    string    `json:"reason" gorm:"size:40;not null"`
	Points    int64     `json:"points" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_point_log_user_date,priority:2"`
}

// Badge is a one-shot achievement. (user_id, name) is unique.
type Badge struct {
	ID       uint      `json:"-" gorm:"primaryKey"`
	UserID   string    `json:"-" gorm:"type:varchar(36);not null;index:idx_badge_user_name,unique"`
	Name     string    `json:"name" gorm:"size:40;not null;index:idx_badge_user_name,unique"`
	Icon     string    `json:"icon"`
	EarnedAt time.Time `json:"earned_at"`
}

// AwardPointsRequest defines the request body for an administrative points award
type AwardPointsRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"required,max=40"`
}

// RatingRequest reports a resource's new average rating
type RatingRequest struct {
	AverageRating float64 `json:"average_rating" validate:"gte=1,lte=5"`
}
