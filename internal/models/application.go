package models

import "time"

// Application tracks a user's application to a job listing (PostgreSQL)
type Application struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string     `json:"user_id" gorm:"type:varchar(36);not null;index:idx_application_user_job,unique"`
	JobID        string     `json:"job_id" gorm:"size:64;not null;index:idx_application_user_job,unique"`
	JobTitle     string     `json:"job_title"`
	Status       string     `json:"status" gorm:"size:20;not null"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	ReminderSet  bool       `json:"reminder_set" gorm:"not null;default:false;index:idx_application_reminder"`
	ReminderDate *time.Time `json:"reminder_date,omitempty" gorm:"index:idx_application_reminder"`
	AppliedAt    time.Time  `json:"applied_at"`
}

// ApplyRequest defines the request body for applying to a job
type ApplyRequest struct {
	ReminderDate *time.Time `json:"reminder_date"`
}
