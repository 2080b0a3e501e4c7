package model

import "time"

// UniversalScope is the StemEntry scope shared by every user.
const UniversalScope = "*"

// StemEntry remembers the last surface text seen for a stem, per user and globally.
type StemEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Scope     string    `gorm:"size:128;not null;uniqueIndex:idx_stem_scope" json:"scope"`
	Stem      string    `gorm:"size:255;not null;uniqueIndex:idx_stem_scope" json:"stem"`
	Surface   string    `gorm:"size:255;not null" json:"surface"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every persisted model for migrations.
func All() []interface{} {
	return []interface{}{
		&ListRecord{},
		&AffinityProfile{},
		&AffinityEntry{},
		&StemEntry{},
	}
}
