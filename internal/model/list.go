package model

import "time"

// ListRecord is one user-visible list. Exactly one record per (user, category) is
// active; older ones are archived under a renamed Name.
type ListRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:128;not null;index:idx_list_owner" json:"user_id"`
	Category  string    `gorm:"size:255;not null;index:idx_list_owner" json:"category"`
	Name      string    `gorm:"size:320;not null;index" json:"name"`
	Items     []string  `gorm:"serializer:json;type:text" json:"items"`
	Archived  bool      `gorm:"not null;index" json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
