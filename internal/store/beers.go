package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"beer-scanner-backend/internal/model"
)

func (s *gormStore) GetBeer(ctx context.Context, id int64) (*model.Beer, error) {
	var beer model.Beer
	if err := s.db.WithContext(ctx).Preload("Aliases").First(&beer, id).Error; err != nil {
		return nil, fmt.Errorf("get beer %d: %w", id, notFound(err))
	}
	return &beer, nil
}

// FindBeer looks up a beer by its exact name and brewery.
func (s *gormStore) FindBeer(ctx context.Context, name, brewery string) (*model.Beer, error) {
	var beer model.Beer
	err := s.db.WithContext(ctx).
		Where("name = ? AND brewery = ?", name, brewery).
		First(&beer).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &beer, nil
}

// FindBeerByAlias resolves a beer through its recorded aliases, ignoring case.
func (s *gormStore) FindBeerByAlias(ctx context.Context, name, brewery string) (*model.Beer, error) {
	alias, err := s.FindAlias(ctx, name, brewery)
	if err != nil {
		return nil, err
	}
	return s.GetBeer(ctx, alias.BeerID)
}

func (s *gormStore) CreateBeer(ctx context.Context, beer *model.Beer) error {
	return s.db.WithContext(ctx).Omit("Aliases").Create(beer).Error
}

func (s *gormStore) SaveBeer(ctx context.Context, beer *model.Beer) error {
	return s.db.WithContext(ctx).Omit("Aliases").Save(beer).Error
}

// DeleteBeer removes a beer together with everything that references it.
// Notifications keep their text but lose the beer reference.
func (s *gormStore) DeleteBeer(ctx context.Context, id int64) error {
	db := s.db.WithContext(ctx)
	steps := []func() error{
		func() error { return db.Where("beer_id = ?", id).Delete(&model.CurrentAvailability{}).Error },
		func() error { return db.Where("beer_id = ?", id).Delete(&model.HistoricalAvailability{}).Error },
		func() error { return db.Where("beer_id = ?", id).Delete(&model.BeerTracking{}).Error },
		func() error { return db.Where("beer_id = ?", id).Delete(&model.BeerAlias{}).Error },
		func() error { return db.Exec("DELETE FROM check_beers_added WHERE beer_id = ?", id).Error },
		func() error { return db.Exec("DELETE FROM check_beers_removed WHERE beer_id = ?", id).Error },
		func() error {
			return db.Model(&model.Notification{}).Where("beer_id = ?", id).Update("beer_id", nil).Error
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("delete beer %d: %w", id, err)
		}
	}

	res := db.Delete(&model.Beer{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete beer %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete beer %d: %w", id, ErrNotFound)
	}
	return nil
}

// ReassignBeer moves every reference from one beer to another. Rows that
// would collide with an existing reference to the target are folded into it.
func (s *gormStore) ReassignBeer(ctx context.Context, fromID, toID int64) error {
	db := s.db.WithContext(ctx)

	if err := reassignCurrent(db, fromID, toID); err != nil {
		return fmt.Errorf("reassign current availability: %w", err)
	}
	if err := db.Model(&model.HistoricalAvailability{}).
		Where("beer_id = ?", fromID).
		Update("beer_id", toID).Error; err != nil {
		return fmt.Errorf("reassign availability history: %w", err)
	}
	if err := reassignTrackings(db, fromID, toID); err != nil {
		return fmt.Errorf("reassign trackings: %w", err)
	}
	for _, table := range []string{"check_beers_added", "check_beers_removed"} {
		if err := reassignJoin(db, table, fromID, toID); err != nil {
			return fmt.Errorf("reassign %s: %w", table, err)
		}
	}
	if err := db.Model(&model.Notification{}).
		Where("beer_id = ?", fromID).
		Update("beer_id", toID).Error; err != nil {
		return fmt.Errorf("reassign notifications: %w", err)
	}
	if err := db.Model(&model.BeerAlias{}).
		Where("beer_id = ?", fromID).
		Update("beer_id", toID).Error; err != nil {
		return fmt.Errorf("reassign aliases: %w", err)
	}
	return nil
}

func reassignCurrent(db *gorm.DB, fromID, toID int64) error {
	var rows []model.CurrentAvailability
	if err := db.Where("beer_id = ?", fromID).Find(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		var target model.CurrentAvailability
		err := db.Where("bar_id = ? AND beer_id = ?", row.BarID, toID).First(&target).Error
		switch {
		case err == nil:
			if row.AddedAt.Before(target.AddedAt) {
				target.AddedAt = row.AddedAt
			}
			if row.LastVerifiedAt.After(target.LastVerifiedAt) {
				target.LastVerifiedAt = row.LastVerifiedAt
			}
			if err := db.Model(&model.CurrentAvailability{}).
				Where("bar_id = ? AND beer_id = ?", row.BarID, toID).
				Updates(map[string]any{"added_at": target.AddedAt, "last_verified_at": target.LastVerifiedAt}).Error; err != nil {
				return err
			}
			if err := db.Where("bar_id = ? AND beer_id = ?", row.BarID, fromID).
				Delete(&model.CurrentAvailability{}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Model(&model.CurrentAvailability{}).
				Where("bar_id = ? AND beer_id = ?", row.BarID, fromID).
				Update("beer_id", toID).Error; err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func reassignTrackings(db *gorm.DB, fromID, toID int64) error {
	var trackings []model.BeerTracking
	if err := db.Where("beer_id = ?", fromID).Find(&trackings).Error; err != nil {
		return err
	}

	for _, t := range trackings {
		q := db.Model(&model.BeerTracking{}).Where("user_id = ? AND beer_id = ?", t.UserID, toID)
		if t.BarID == nil {
			q = q.Where("bar_id IS NULL")
		} else {
			q = q.Where("bar_id = ?", *t.BarID)
		}
		var dup int64
		if err := q.Count(&dup).Error; err != nil {
			return err
		}

		if dup > 0 {
			err := db.Delete(&model.BeerTracking{}, t.ID).Error
			if err != nil {
				return err
			}
			continue
		}
		if err := db.Model(&model.BeerTracking{}).Where("id = ?", t.ID).Update("beer_id", toID).Error; err != nil {
			return err
		}
	}
	return nil
}

// reassignJoin rewrites a check/beer join table. Target check IDs are read
// first because MySQL refuses a subquery on the table being modified.
func reassignJoin(db *gorm.DB, table string, fromID, toID int64) error {
	var checkIDs []int64
	if err := db.Table(table).Where("beer_id = ?", toID).Pluck("check_id", &checkIDs).Error; err != nil {
		return err
	}
	if len(checkIDs) > 0 {
		if err := db.Exec("DELETE FROM "+table+" WHERE beer_id = ? AND check_id IN ?", fromID, checkIDs).Error; err != nil {
			return err
		}
	}
	return db.Exec("UPDATE "+table+" SET beer_id = ? WHERE beer_id = ?", toID, fromID).Error
}

func (s *gormStore) ListAliases(ctx context.Context, beerID int64) ([]model.BeerAlias, error) {
	var aliases []model.BeerAlias
	err := s.db.WithContext(ctx).Where("beer_id = ?", beerID).Order("id").Find(&aliases).Error
	return aliases, err
}

// FindAlias looks up an alias by its case-folded name and brewery.
func (s *gormStore) FindAlias(ctx context.Context, name, brewery string) (*model.BeerAlias, error) {
	nameKey, breweryKey := model.AliasKey(name, brewery)
	var alias model.BeerAlias
	err := s.db.WithContext(ctx).
		Where("name_key = ? AND brewery_key = ?", nameKey, breweryKey).
		First(&alias).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &alias, nil
}

func (s *gormStore) CreateAlias(ctx context.Context, alias *model.BeerAlias) error {
	alias.NameKey, alias.BreweryKey = model.AliasKey(alias.Name, alias.Brewery)
	return s.db.WithContext(ctx).Create(alias).Error
}

func (s *gormStore) DeleteAlias(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.BeerAlias{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
