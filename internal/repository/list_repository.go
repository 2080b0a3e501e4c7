package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"listwise/internal/model"
)

type ListRepository struct {
	db *gorm.DB
}

// ListQuery filters a user's lists. Zero values mean "no filter".
type ListQuery struct {
	UserID   string
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}

func NewListRepository(db *gorm.DB) *ListRepository {
	return &ListRepository{db: db}
}

func (r *ListRepository) Create(ctx context.Context, list *model.ListRecord) error {
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		return fmt.Errorf("create list failed: %w", err)
	}
	return nil
}

// Replace archives previous (when not nil) and installs next in one transaction.
func (r *ListRepository) Replace(ctx context.Context, previous, next *model.ListRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if previous != nil {
			err := tx.Model(&model.ListRecord{}).
				Where("id = ?", previous.ID).
				Updates(map[string]interface{}{"name": previous.Name, "archived": true}).Error
			if err != nil {
				return err
			}
			previous.Archived = true
		}
		return tx.Create(next).Error
	})
	if err != nil {
		return fmt.Errorf("replace list failed: %w", err)
	}
	return nil
}

func (r *ListRepository) UpdateItems(ctx context.Context, list *model.ListRecord) error {
	if err := r.db.WithContext(ctx).Model(list).Select("items", "updated_at").Updates(list).Error; err != nil {
		return fmt.Errorf("update list items failed: %w", err)
	}
	return nil
}

func (r *ListRepository) FindActive(ctx context.Context, userID, category string) (*model.ListRecord, error) {
	var list model.ListRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND archived = ?", userID, category, false).
		Order("created_at DESC").Order("id DESC").
		First(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active list failed: %w", err)
	}
	return &list, nil
}

// FindByName looks a list up by its exact name, archived names included.
func (r *ListRepository) FindByName(ctx context.Context, userID, name string) (*model.ListRecord, error) {
	var list model.ListRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		Order("created_at DESC").Order("id DESC").
		First(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find list by name failed: %w", err)
	}
	return &list, nil
}

// Query returns matching lists, newest first.
func (r *ListRepository) Query(ctx context.Context, q ListQuery) ([]model.ListRecord, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if !q.From.IsZero() {
		tx = tx.Where("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("created_at <= ?", q.To)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var lists []model.ListRecord
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("query lists failed: %w", err)
	}
	return lists, nil
}

func (r *ListRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.ListRecord{}).Error; err != nil {
		return fmt.Errorf("delete lists failed: %w", err)
	}
	return nil
}
