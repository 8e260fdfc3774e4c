package models

import "time"

const DefaultFolder = "default"

// SavedItem is a row of the global bookmark index. (user_id, item_kind, item_id) is unique.
type SavedItem struct {
	ID       string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID   string     `json:"user_id" gorm:"type:varchar(36);not null;index:idx_saved_item,unique;index:idx_saved_user_kind"`
	ItemKind TargetKind `json:"item_kind" gorm:"size:20;not null;index:idx_saved_item,unique;index:idx_saved_user_kind"`
	ItemID   string     `json:"item_id" gorm:"size:64;not null;index:idx_saved_item,unique;index:idx_saved_target"`
	Folder   string     `json:"folder" gorm:"size:60;not null"`
	Notes    string     `json:"notes,omitempty"`
	SavedAt  time.Time  `json:"saved_at" gorm:"index"`
}
