package model

import "time"

// AffinityProfile is the per (user, category) header of the aggregate: how many
// lists have been started in the category.
type AffinityProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_affinity_profile" json:"user_id"`
	Category  string    `gorm:"size:255;not null;uniqueIndex:idx_affinity_profile;index" json:"category"`
	Lists     int64     `gorm:"not null" json:"lists"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AffinityEntry carries both the raw count and the decayed score of one stem.
type AffinityEntry struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	UserID   string  `gorm:"size:128;not null;uniqueIndex:idx_affinity_entry" json:"user_id"`
	Category string  `gorm:"size:255;not null;uniqueIndex:idx_affinity_entry;index" json:"category"`
	Stem     string  `gorm:"size:255;not null;uniqueIndex:idx_affinity_entry" json:"stem"`
	Count    int64   `gorm:"not null" json:"count"`
	Score    float64 `gorm:"not null" json:"score"`
	Baseline float64 `gorm:"not null" json:"baseline"`
	Anchored bool    `gorm:"not null" json:"anchored"`
}

// AffinityEvent is published after a record changes.
type AffinityEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Category   string    `json:"category"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}
