package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hintwheel/internal/constants"
	"hintwheel/internal/models"
)

// HistoryStore is the append-only activity log.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, record *models.Activity) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ExcludedHintIDs returns the hint ids a user must not be served again:
// every hint the user contributed, with no time bound, plus every hint
// the user picked at or after since (unix ms).
func (s *HistoryStore) ExcludedHintIDs(ctx context.Context, userID string, since int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("(user_id = ? AND activity_type = ? AND owner_user_id = ?) OR (user_id = ? AND activity_type = ? AND timestamp >= ?)",
			userID, constants.ActivityAdd, userID,
			userID, constants.ActivitySpin, since).
		Distinct().
		Pluck("hint_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load excluded hint ids: %w", err)
	}
	return ids, nil
}

// Recent returns the user's latest activity newest-first, left-joined
// with the current faculty of each hint. Faculty is nil for rows whose
// hint no longer exists.
func (s *HistoryStore) Recent(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.WithContext(ctx).Table("activities").
		Select("activities.hint_id, activities.hint_text, activities.timestamp, activities.activity_type, activities.owner_user_id, hints.faculty").
		Joins("LEFT JOIN hints ON hints.id = activities.hint_id").
		Where("activities.user_id = ?", userID).
		Order("activities.timestamp DESC, activities.id DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load activity history: %w", err)
	}
	return entries, nil
}

// CountForHint reports how many activity rows reference a hint.
func (s *HistoryStore) CountForHint(ctx context.Context, hintID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("hint_id = ?", hintID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count activities for hint %d: %w", hintID, err)
	}
	return count, nil
}
