package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"beer-scanner-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetBar(ctx context.Context, id int64) (*model.Bar, error)
	ListBars(ctx context.Context) ([]model.Bar, error)
	ListBarsDue(ctx context.Context, checkedBefore *time.Time) ([]model.Bar, error)
	RecordFingerprint(ctx context.Context, barID int64, hash string, at time.Time) error

	GetBeer(ctx context.Context, id int64) (*model.Beer, error)
	FindBeer(ctx context.Context, name, brewery string) (*model.Beer, error)
	FindBeerByAlias(ctx context.Context, name, brewery string) (*model.Beer, error)
	CreateBeer(ctx context.Context, beer *model.Beer) error
	SaveBeer(ctx context.Context, beer *model.Beer) error
	DeleteBeer(ctx context.Context, id int64) error
	ReassignBeer(ctx context.Context, fromID, toID int64) error
	ListAliases(ctx context.Context, beerID int64) ([]model.BeerAlias, error)
	FindAlias(ctx context.Context, name, brewery string) (*model.BeerAlias, error)
	CreateAlias(ctx context.Context, alias *model.BeerAlias) error
	DeleteAlias(ctx context.Context, id int64) error

	ListCurrent(ctx context.Context, barID int64) ([]model.CurrentAvailability, error)
	OpenCurrent(ctx context.Context, barID, beerID int64, at time.Time) error
	VerifyCurrent(ctx context.Context, barID int64, beerIDs []int64, at time.Time) error
	CloseCurrent(ctx context.Context, row model.CurrentAvailability, at time.Time) error
	CloseOpenHistory(ctx context.Context, barID, beerID int64, at time.Time) (int64, error)
	ListHistory(ctx context.Context, barID int64) ([]model.HistoricalAvailability, error)

	CreateCheck(ctx context.Context, check *model.Check) error
	GetCheck(ctx context.Context, id int64) (*model.Check, error)
	UpdateCheckStatus(ctx context.Context, id int64, status model.CheckStatus) error
	SaveCheckResult(ctx context.Context, check *model.Check) error
	SetCheckBeers(ctx context.Context, checkID int64, added, removed []model.Beer) error
	ListChecksForBar(ctx context.Context, barID int64, limit int) ([]model.Check, error)
	ListChecksToResume(ctx context.Context, staleBefore time.Time) ([]model.Check, error)
	NewerChangedCheck(ctx context.Context, barID, checkID int64) (*model.Check, error)

	UsersTrackingBeer(ctx context.Context, beerID, barID int64) ([]model.User, error)
	UsersTrackingBar(ctx context.Context, barID int64) ([]model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateNotifications(ctx context.Context, notifications []model.Notification) error
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListUnsentNotificationIDs(ctx context.Context, limit int) ([]int64, error)
	ClaimNotification(ctx context.Context, id int64, at time.Time) (bool, error)
	ReleaseNotification(ctx context.Context, id int64) error
	MarkNotificationRead(ctx context.Context, id int64) error
	ListNotificationsForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error)

	ListPushSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	UpsertPushSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error

	GetStats(ctx context.Context, barID int64) (*model.ScraperStats, error)
	SaveStats(ctx context.Context, stats *model.ScraperStats) error
	AggregateStats(ctx context.Context) (*AggregateStats, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// notFound translates GORM's missing-row error into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
