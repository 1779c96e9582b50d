package store

import (
	"context"
	"fmt"
	"time"

	"beer-scanner-backend/internal/model"
)

func (s *gormStore) CreateNotifications(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Omit("User").Create(&notifications).Error; err != nil {
		return fmt.Errorf("create %d notifications: %w", len(notifications), err)
	}
	return nil
}

func (s *gormStore) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	var n model.Notification
	if err := s.db.WithContext(ctx).Preload("User").First(&n, id).Error; err != nil {
		return nil, fmt.Errorf("get notification %d: %w", id, notFound(err))
	}
	return &n, nil
}

// ListUnsentNotificationIDs returns up to limit notifications still waiting for delivery, oldest first.
func (s *gormStore) ListUnsentNotificationIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("is_sent = ?", false).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list unsent notifications: %w", err)
	}
	return ids, nil
}

// ClaimNotification marks a notification as sent only if nobody else has.
// It reports whether the caller won the claim.
func (s *gormStore) ClaimNotification(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND is_sent = ?", id, false).
		Updates(map[string]any{"is_sent": true, "sent_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("claim notification %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseNotification returns a claimed notification to the unsent pool.
func (s *gormStore) ReleaseNotification(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_sent": false, "sent_at": nil}).Error
	if err != nil {
		return fmt.Errorf("release notification %d: %w", id, err)
	}
	return nil
}

func (s *gormStore) MarkNotificationRead(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification %d read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark notification %d read: %w", id, ErrNotFound)
	}
	return nil
}

func (s *gormStore) ListNotificationsForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var ns []model.Notification
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&ns).Error; err != nil {
		return nil, fmt.Errorf("list notifications for user %d: %w", userID, err)
	}
	return ns, nil
}
