package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"beer-scanner-backend/internal/model"
)

func (s *gormStore) CreateCheck(ctx context.Context, check *model.Check) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(check).Error; err != nil {
		return fmt.Errorf("create check for bar %d: %w", check.BarID, err)
	}
	return nil
}

// GetCheck loads a check with its bar and added/removed beers.
func (s *gormStore) GetCheck(ctx context.Context, id int64) (*model.Check, error) {
	var check model.Check
	err := s.db.WithContext(ctx).
		Preload("Bar").
		Preload("BeersAdded").
		Preload("BeersRemoved").
		First(&check, id).Error
	if err != nil {
		return nil, fmt.Errorf("get check %d: %w", id, notFound(err))
	}
	return &check, nil
}

func (s *gormStore) UpdateCheckStatus(ctx context.Context, id int64, status model.CheckStatus) error {
	res := s.db.WithContext(ctx).
		Model(&model.Check{}).
		Where("id = ?", id).
		Update("processing_status", status)
	if res.Error != nil {
		return fmt.Errorf("update check %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update check %d status: %w", id, ErrNotFound)
	}
	return nil
}

// SaveCheckResult persists the outcome columns of a check.
func (s *gormStore) SaveCheckResult(ctx context.Context, check *model.Check) error {
	err := s.db.WithContext(ctx).
		Model(&model.Check{ID: check.ID}).
		Select("processing_status", "process_duration", "error_message").
		Updates(check).Error
	if err != nil {
		return fmt.Errorf("save check %d result: %w", check.ID, err)
	}
	return nil
}

// SetCheckBeers replaces the added/removed beer lists of a check.
func (s *gormStore) SetCheckBeers(ctx context.Context, checkID int64, added, removed []model.Beer) error {
	db := s.db.WithContext(ctx)
	lists := []struct {
		table string
		beers []model.Beer
	}{
		{"check_beers_added", added},
		{"check_beers_removed", removed},
	}
	for _, l := range lists {
		if err := db.Exec("DELETE FROM "+l.table+" WHERE check_id = ?", checkID).Error; err != nil {
			return fmt.Errorf("reset %s for check %d: %w", l.table, checkID, err)
		}
		for _, beer := range l.beers {
			if err := db.Exec("INSERT INTO "+l.table+" (check_id, beer_id) VALUES (?, ?)", checkID, beer.ID).Error; err != nil {
				return fmt.Errorf("insert %s for check %d: %w", l.table, checkID, err)
			}
		}
	}
	return nil
}

// ListChecksForBar returns the most recent checks of a bar, newest first.
func (s *gormStore) ListChecksForBar(ctx context.Context, barID int64, limit int) ([]model.Check, error) {
	var checks []model.Check
	err := s.db.WithContext(ctx).
		Preload("BeersAdded").
		Preload("BeersRemoved").
		Where("bar_id = ?", barID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("list checks for bar %d: %w", barID, err)
	}
	return checks, nil
}

// ListChecksToResume returns pending checks plus processing checks untouched since staleBefore.
func (s *gormStore) ListChecksToResume(ctx context.Context, staleBefore time.Time) ([]model.Check, error) {
	var checks []model.Check
	err := s.db.WithContext(ctx).
		Where("processing_status = ? OR (processing_status = ? AND updated_at < ?)",
			model.CheckPending, model.CheckProcessing, staleBefore).
		Order("id").
		Find(&checks).Error
	if err != nil {
		return nil, fmt.Errorf("list checks to resume: %w", err)
	}
	return checks, nil
}

// NewerChangedCheck returns the newest completed check of a bar created after
// checkID that saw changed menu content, or ErrNotFound when there is none.
func (s *gormStore) NewerChangedCheck(ctx context.Context, barID, checkID int64) (*model.Check, error) {
	var check model.Check
	err := s.db.WithContext(ctx).
		Where("bar_id = ? AND id > ? AND has_changes = ? AND processing_status = ?",
			barID, checkID, true, model.CheckCompleted).
		Order("id DESC").
		First(&check).Error
	if err != nil {
		return nil, fmt.Errorf("newer check for bar %d: %w", barID, notFound(err))
	}
	return &check, nil
}
