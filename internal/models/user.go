package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                      string                  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name                    string                  `json:"name"`
	Email                   string                  `json:"email" gorm:"uniqueIndex"`
	Role                    string                  `json:"role" gorm:"size:20;not null"`
	FirebaseUID             *string                 `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	NotificationPreferences NotificationPreferences `json:"notification_preferences" gorm:"embedded;embeddedPrefix:notify_"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

// NotificationPreferences are the per-user delivery toggles. All default to enabled.
type NotificationPreferences struct {
	Jobs      bool `json:"jobs"`
	Resources bool `json:"resources"`
	Community bool `json:"community"`
	Email     bool `json:"email"`
}

// DefaultNotificationPreferences enables every toggle.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{Jobs: true, Resources: true, Community: true, Email: true}
}

// Allows reports whether notifications of type t are wanted at all.
// Reminder and system notifications cannot be switched off.
func (p NotificationPreferences) Allows(t NotificationType) bool {
	switch t {
	case NotificationJob:
		return p.Jobs
	case NotificationResource:
		return p.Resources
	case NotificationCommunity:
		return p.Community
	default:
		return true
	}
}

type UpdatePreferencesRequest struct {
	Jobs      *bool `json:"jobs"`
	Resources *bool `json:"resources"`
	Community *bool `json:"community"`
	Email     *bool `json:"email"`
}

// Apply overlays the fields present in the request on p.
func (r UpdatePreferencesRequest) Apply(p NotificationPreferences) NotificationPreferences {
	if r.Jobs != nil {
		p.Jobs = *r.Jobs
	}
	if r.Resources != nil {
		p.Resources = *r.Resources
	}
	if r.Community != nil {
		p.Community = *r.Community
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	return p
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
