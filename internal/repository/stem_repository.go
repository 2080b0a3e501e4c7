package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listwise/internal/model"
)

// ErrReservedScope is returned for a user id equal to the shared scope.
var ErrReservedScope = errors.New("user id is reserved for shared names")

type StemRepository struct {
	db *gorm.DB
}

func NewStemRepository(db *gorm.DB) *StemRepository {
	return &StemRepository{db: db}
}

// Remember stores stem -> surface pairs for the user and for everyone.
func (r *StemRepository) Remember(ctx context.Context, userID string, surfaces map[string]string) error {
	if userID == model.UniversalScope {
		return ErrReservedScope
	}
	if len(surfaces) == 0 {
		return nil
	}
	rows := make([]model.StemEntry, 0, 2*len(surfaces))
	for stem, surface := range surfaces {
		rows = append(rows,
			model.StemEntry{Scope: userID, Stem: stem, Surface: surface},
			model.StemEntry{Scope: model.UniversalScope, Stem: stem, Surface: surface},
		)
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "stem"}},
		DoUpdates: clause.AssignmentColumns([]string{"surface", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("remember stems failed: %w", err)
	}
	return nil
}

// Lookup resolves stems to the user's own wording, then the shared one. Stems
// nobody has a surface for are absent from the result.
func (r *StemRepository) Lookup(ctx context.Context, userID string, stems []string) (map[string]string, error) {
	out := make(map[string]string, len(stems))
	if len(stems) == 0 {
		return out, nil
	}
	var rows []model.StemEntry
	err := r.db.WithContext(ctx).
		Where("scope IN ? AND stem IN ?", []string{userID, model.UniversalScope}, stems).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lookup stems failed: %w", err)
	}
	for _, row := range rows {
		if row.Scope == model.UniversalScope {
			out[row.Stem] = row.Surface
		}
	}
	for _, row := range rows {
		if row.Scope != model.UniversalScope {
			out[row.Stem] = row.Surface
		}
	}
	return out, nil
}

func (r *StemRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if userID == model.UniversalScope {
		return ErrReservedScope
	}
	if err := r.db.WithContext(ctx).Where("scope = ?", userID).Delete(&model.StemEntry{}).Error; err != nil {
		return fmt.Errorf("delete stems failed: %w", err)
	}
	return nil
}
