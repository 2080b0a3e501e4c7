package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listwise/internal/affinity"
	"listwise/internal/model"
)

type AffinityRepository struct {
	db *gorm.DB
}

func NewAffinityRepository(db *gorm.DB) *AffinityRepository {
	return &AffinityRepository{db: db}
}

// Load returns the record for (user, category), empty when none was stored yet.
func (r *AffinityRepository) Load(ctx context.Context, userID, category string) (*affinity.Record, error) {
	record := affinity.NewRecord(userID, category)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profiles []model.AffinityProfile
		if err := tx.Where("user_id = ? AND category = ?", userID, category).Limit(1).Find(&profiles).Error; err != nil {
			return err
		}
		if len(profiles) > 0 {
			record.Lists = profiles[0].Lists
			record.UpdatedAt = profiles[0].UpdatedAt
		}

		var entries []model.AffinityEntry
		if err := tx.Where("user_id = ? AND category = ?", userID, category).Find(&entries).Error; err != nil {
			return err
		}
		for _, e := range entries {
			record.Entries[e.Stem] = toEntry(e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load affinity record failed: %w", err)
	}
	return record, nil
}

// Save writes the raw and decayed state of a record together.
func (r *AffinityRepository) Save(ctx context.Context, record *affinity.Record) error {
	profile := model.AffinityProfile{
		UserID:   record.UserID,
		Category: record.Category,
		Lists:    record.Lists,
	}
	entries := make([]model.AffinityEntry, 0, len(record.Entries))
	for _, stem := range record.Stems() {
		e := record.Entries[stem]
		entries = append(entries, model.AffinityEntry{
			UserID:   record.UserID,
			Category: record.Category,
			Stem:     stem,
			Count:    e.Count,
			Score:    e.Score,
			Baseline: e.Baseline,
			Anchored: e.Anchored,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"lists", "updated_at"}),
		}).Create(&profile).Error
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND category = ?", record.UserID, record.Category).
			Delete(&model.AffinityEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 200).Error
	})
	if err != nil {
		return fmt.Errorf("save affinity record failed: %w", err)
	}
	record.UpdatedAt = profile.UpdatedAt
	return nil
}

// ListByCategory reads every user's record for a category, ordered by user id, in
// one transaction so no record is seen half written.
func (r *AffinityRepository) ListByCategory(ctx context.Context, category string) ([]*affinity.Record, error) {
	var records []*affinity.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profiles []model.AffinityProfile
		if err := tx.Where("category = ?", category).Order("user_id ASC").Find(&profiles).Error; err != nil {
			return err
		}
		var entries []model.AffinityEntry
		if err := tx.Where("category = ?", category).Order("user_id ASC").Order("stem ASC").Find(&entries).Error; err != nil {
			return err
		}

		byUser := make(map[string]*affinity.Record, len(profiles))
		for _, p := range profiles {
			rec := affinity.NewRecord(p.UserID, category)
			rec.Lists = p.Lists
			rec.UpdatedAt = p.UpdatedAt
			byUser[p.UserID] = rec
			records = append(records, rec)
		}
		for _, e := range entries {
			rec, ok := byUser[e.UserID]
			if !ok {
				continue
			}
			rec.Entries[e.Stem] = toEntry(e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list affinity records failed: %w", err)
	}
	return records, nil
}

func (r *AffinityRepository) DeleteByUserID(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.AffinityEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.AffinityProfile{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete affinity records failed: %w", err)
	}
	return nil
}

func toEntry(e model.AffinityEntry) *affinity.Entry {
	return &affinity.Entry{
		Count:    e.Count,
		Score:    e.Score,
		Baseline: e.Baseline,
		Anchored: e.Anchored,
	}
}

// Categories lists the categories the user has a record in.
func (r *AffinityRepository) Categories(ctx context.Context, userID string) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).Model(&model.AffinityProfile{}).
		Where("user_id = ?", userID).
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, fmt.Errorf("list affinity categories failed: %w", err)
	}
	return categories, nil
}
