package models

import "time"

// NotificationType classifies a notification; it also drives preference and email policy checks
type NotificationType string

const (
	NotificationJob       NotificationType = "job"
	NotificationResource  NotificationType = "resource"
	NotificationCommunity NotificationType = "community"
	NotificationReminder  NotificationType = "reminder"
	NotificationSystem    NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationJob, NotificationResource, NotificationCommunity, NotificationReminder, NotificationSystem:
		return true
	}
	return false
}

// Notification represents a persisted inbox entry (PostgreSQL)
type Notification struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	RecipientID  string           `json:"recipient_id" gorm:"type:varchar(36);not null;index:idx_notification_recipient_created"`
	Type         NotificationType `json:"type" gorm:"size:20;index"`
	Title        string           `json:"title" gorm:"not null"`
	Message      string           `json:"message"`
	RelatedID    string           `json:"related_id,omitempty" gorm:"size:64"`
	RelatedModel string           `json:"related_model,omitempty" gorm:"size:40"`
	Icon         string           `json:"icon,omitempty"`
	IsRead       bool             `json:"is_read" gorm:"not null;default:false;index"`
	ActionURL    string           `json:"action_url,omitempty"`
	CreatedAt    time.Time        `json:"created_at" gorm:"index:idx_notification_recipient_created"`
	ExpiresAt    time.Time        `json:"expires_at" gorm:"index"`
}

// DispatchRequest defines the request body for sending a notification to one recipient
type DispatchRequest struct {
	RecipientID  string           `json:"recipient_id" validate:"required"`
	Type         NotificationType `json:"type" validate:"required,oneof=job resource community reminder system"`
	Title        string           `json:"title" validate:"required,max=200"`
	Message      string           `json:"message" validate:"max=2000"`
	RelatedID    string           `json:"related_id"`
	RelatedModel string           `json:"related_model"`
	Icon         string           `json:"icon"`
	ActionURL    string           `json:"action_url" validate:"omitempty,url"`
}
