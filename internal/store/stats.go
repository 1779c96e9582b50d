package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"beer-scanner-backend/internal/model"
)

func (s *gormStore) GetStats(ctx context.Context, barID int64) (*model.ScraperStats, error) {
	var st model.ScraperStats
	if err := s.db.WithContext(ctx).Where("bar_id = ?", barID).First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

// SaveStats upserts the stats row of a bar.
func (s *gormStore) SaveStats(ctx context.Context, st *model.ScraperStats) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(st).Error
	if err != nil {
		return fmt.Errorf("save stats for bar %d: %w", st.BarID, err)
	}
	return nil
}

func (s *gormStore) AggregateStats(ctx context.Context) (*AggregateStats, error) {
	var agg AggregateStats
	err := s.db.WithContext(ctx).
		Model(&model.ScraperStats{}).
		Select(`COUNT(*) AS bars,
			COALESCE(SUM(total_checks), 0) AS total_checks,
			COALESCE(SUM(successful_checks), 0) AS successful_checks,
			COALESCE(SUM(failed_checks), 0) AS failed_checks,
			COALESCE(SUM(total_changes_detected), 0) AS total_changes_detected,
			COALESCE(AVG(last_check_duration_ms), 0) AS avg_check_duration_ms`).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	return &agg, nil
}
