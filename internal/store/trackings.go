package store

import (
	"context"
	"fmt"

	"beer-scanner-backend/internal/model"
)

// UsersTrackingBeer returns users tracking a beer either everywhere or at the given bar.
// Each user appears once even if several trackings match.
func (s *gormStore) UsersTrackingBeer(ctx context.Context, beerID, barID int64) ([]model.User, error) {
	db := s.db.WithContext(ctx)
	sub := db.Model(&model.BeerTracking{}).
		Select("user_id").
		Where("beer_id = ? AND (bar_id IS NULL OR bar_id = ?)", beerID, barID)

	var users []model.User
	if err := db.Where("id IN (?)", sub).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("users tracking beer %d: %w", beerID, err)
	}
	return users, nil
}

// UsersTrackingBar returns users who track the bar itself.
func (s *gormStore) UsersTrackingBar(ctx context.Context, barID int64) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Joins("JOIN user_tracked_bars ON user_tracked_bars.user_id = users.id").
		Where("user_tracked_bars.bar_id = ?", barID).
		Order("users.id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("users tracking bar %d: %w", barID, err)
	}
	return users, nil
}

func (s *gormStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
