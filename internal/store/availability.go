package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"beer-scanner-backend/internal/model"
)

// ListCurrent returns the beers currently believed to be on a bar's menu.
func (s *gormStore) ListCurrent(ctx context.Context, barID int64) ([]model.CurrentAvailability, error) {
	var rows []model.CurrentAvailability
	err := s.db.WithContext(ctx).
		Preload("Beer").
		Where("bar_id = ?", barID).
		Order("beer_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list current availability for bar %d: %w", barID, err)
	}
	return rows, nil
}

// OpenCurrent starts a new availability window for a beer at a bar.
func (s *gormStore) OpenCurrent(ctx context.Context, barID, beerID int64, at time.Time) error {
	row := model.CurrentAvailability{
		BarID:          barID,
		BeerID:         beerID,
		AddedAt:        at,
		LastVerifiedAt: at,
	}
	if err := s.db.WithContext(ctx).Omit("Beer").Create(&row).Error; err != nil {
		return fmt.Errorf("open availability bar=%d beer=%d: %w", barID, beerID, err)
	}
	return nil
}

// VerifyCurrent bumps lastVerifiedAt on the given beers still present at a bar.
func (s *gormStore) VerifyCurrent(ctx context.Context, barID int64, beerIDs []int64, at time.Time) error {
	if len(beerIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&model.CurrentAvailability{}).
		Where("bar_id = ? AND beer_id IN ?", barID, beerIDs).
		Update("last_verified_at", at).Error
	if err != nil {
		return fmt.Errorf("verify availability for bar %d: %w", barID, err)
	}
	return nil
}

// CloseCurrent archives a current row into history and removes it from the hot table.
// Mirrors archiveRecord: the closed window keeps the original AddedAt.
func (s *gormStore) CloseCurrent(ctx context.Context, row model.CurrentAvailability, at time.Time) error {
	db := s.db.WithContext(ctx)
	res := db.Where("bar_id = ? AND beer_id = ?", row.BarID, row.BeerID).Delete(&model.CurrentAvailability{})
	if res.Error != nil {
		return fmt.Errorf("close availability bar=%d beer=%d: %w", row.BarID, row.BeerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return archive(db, row, at)
}

func archive(db *gorm.DB, row model.CurrentAvailability, at time.Time) error {
	removedAt := at
	history := model.HistoricalAvailability{
		BarID:     row.BarID,
		BeerID:    row.BeerID,
		AddedAt:   row.AddedAt,
		RemovedAt: &removedAt,
	}
	if err := db.Omit("Beer").Create(&history).Error; err != nil {
		return fmt.Errorf("archive availability bar=%d beer=%d: %w", row.BarID, row.BeerID, err)
	}
	return nil
}

// CloseOpenHistory closes history windows for a bar/beer pair that were never closed.
func (s *gormStore) CloseOpenHistory(ctx context.Context, barID, beerID int64, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.HistoricalAvailability{}).
		Where("bar_id = ? AND beer_id = ? AND removed_at IS NULL", barID, beerID).
		Update("removed_at", at)
	if res.Error != nil {
		return 0, fmt.Errorf("close open history bar=%d beer=%d: %w", barID, beerID, res.Error)
	}
	return res.RowsAffected, nil
}

// ListHistory returns archived windows for a bar, or for every bar when barID is 0.
func (s *gormStore) ListHistory(ctx context.Context, barID int64) ([]model.HistoricalAvailability, error) {
	q := s.db.WithContext(ctx).Preload("Beer")
	if barID != 0 {
		q = q.Where("bar_id = ?", barID)
	}
	var rows []model.HistoricalAvailability
	if err := q.Order("added_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list availability history: %w", err)
	}
	return rows, nil
}
