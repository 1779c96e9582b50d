package store

import (
	"context"
	"fmt"
	"time"

	"beer-scanner-backend/internal/model"
)

func (s *gormStore) GetBar(ctx context.Context, id int64) (*model.Bar, error) {
	var bar model.Bar
	if err := s.db.WithContext(ctx).First(&bar, id).Error; err != nil {
		return nil, fmt.Errorf("get bar %d: %w", id, notFound(err))
	}
	return &bar, nil
}

// ListBars returns all approved bars ordered by name.
func (s *gormStore) ListBars(ctx context.Context) ([]model.Bar, error) {
	var bars []model.Bar
	if err := s.db.WithContext(ctx).Where("is_approved = ?", true).Order("name, id").Find(&bars).Error; err != nil {
		return nil, fmt.Errorf("list bars: %w", err)
	}
	return bars, nil
}

// ListBarsDue returns approved bars with a menu URL, ordered by ID.
// When checkedBefore is set, bars checked at or after that instant are left out.
func (s *gormStore) ListBarsDue(ctx context.Context, checkedBefore *time.Time) ([]model.Bar, error) {
	q := s.db.WithContext(ctx).
		Where("is_approved = ?", true).
		Where("menu_url <> ''")
	if checkedBefore != nil {
		q = q.Where("last_checked_at IS NULL OR last_checked_at < ?", *checkedBefore)
	}

	var bars []model.Bar
	if err := q.Order("id").Find(&bars).Error; err != nil {
		return nil, fmt.Errorf("list bars due: %w", err)
	}
	return bars, nil
}

// RecordFingerprint stores the latest menu hash and check time on the bar.
func (s *gormStore) RecordFingerprint(ctx context.Context, barID int64, hash string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Bar{}).
		Where("id = ?", barID).
		Updates(map[string]any{"last_menu_hash": hash, "last_checked_at": at})
	if res.Error != nil {
		return fmt.Errorf("record fingerprint for bar %d: %w", barID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record fingerprint for bar %d: %w", barID, ErrNotFound)
	}
	return nil
}
