package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hintwheel/internal/models"
)

// HintStore is the durable hint collection.
type HintStore struct {
	db *gorm.DB
}

func NewHintStore(db *gorm.DB) *HintStore {
	return &HintStore{db: db}
}

// Create inserts a new hint and returns it with its assigned id.
func (s *HintStore) Create(ctx context.Context, faculty, text string) (*models.Hint, error) {
	hint := &models.Hint{Faculty: faculty, Text: text}
	if err := s.db.WithContext(ctx).Create(hint).Error; err != nil {
		return nil, fmt.Errorf("insert hint: %w", err)
	}
	return hint, nil
}

// All returns every hint ordered by faculty then text, the admin
// listing order.
func (s *HintStore) All(ctx context.Context) ([]models.Hint, error) {
	var hints []models.Hint
	if err := s.db.WithContext(ctx).Order("faculty, text").Find(&hints).Error; err != nil {
		return nil, fmt.Errorf("list hints: %w", err)
	}
	return hints, nil
}

// TextExists reports whether a live hint already carries text under
// case-insensitive comparison. excludeID skips one hint, for edits that
// keep their own text.
func (s *HintStore) TextExists(ctx context.Context, text string, excludeID int64) (bool, error) {
	var count int64
	query := s.db.WithContext(ctx).Model(&models.Hint{}).Where("LOWER(text) = LOWER(?)", text)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check hint text: %w", err)
	}
	return count > 0, nil
}

// Update rewrites a hint's faculty and text and keeps the denormalized
// history snapshots in step, in one transaction. Returns false when the
// id is unknown.
func (s *HintStore) Update(ctx context.Context, id int64, faculty, text string) (bool, error) {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Hint{}).Where("id = ?", id).
			Updates(map[string]any{"faculty": faculty, "text": text})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		return tx.Model(&models.Activity{}).Where("hint_id = ?", id).
			Update("hint_text", text).Error
	})
	if err != nil {
		return false, fmt.Errorf("update hint: %w", err)
	}
	return found, nil
}

// Delete removes a hint and cascades to its activity rows in one
// transaction. Returns false when the id is unknown.
func (s *HintStore) Delete(ctx context.Context, id int64) (bool, error) {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Hint{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		return tx.Where("hint_id = ?", id).Delete(&models.Activity{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("delete hint: %w", err)
	}
	return found, nil
}

// ListExcluding returns every hint whose id is not in exclude.
func (s *HintStore) ListExcluding(ctx context.Context, exclude []int64) ([]models.Hint, error) {
	var hints []models.Hint
	query := s.db.WithContext(ctx)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	if err := query.Find(&hints).Error; err != nil {
		return nil, fmt.Errorf("list eligible hints: %w", err)
	}
	return hints, nil
}

func (s *HintStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Hint{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count hints: %w", err)
	}
	return count, nil
}

// Seed bulk-inserts the starter hints, used once on an empty table.
func (s *HintStore) Seed(ctx context.Context, hints []models.Hint) error {
	if len(hints) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(hints, 100).Error
	})
	if err != nil {
		return fmt.Errorf("seed hints: %w", err)
	}
	return nil
}
