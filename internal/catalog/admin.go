package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/parse"
	"beer-scanner-backend/internal/store"
)

// BeerUpdate lists the fields an administrator may change. Nil fields are left alone.
type BeerUpdate struct {
	Name        *string  `json:"name"`
	Brewery     *string  `json:"brewery"`
	Type        *string  `json:"type"`
	ABV         *float64 `json:"abv"`
	Description *string  `json:"description"`
}

// UpdateBeer applies an admin edit. A rename keeps the previous name reachable through an alias.
func (c *Catalog) UpdateBeer(ctx context.Context, id int64, upd BeerUpdate) (*model.Beer, error) {
	var out *model.Beer
	err := c.store.Transaction(ctx, func(tx store.Store) error {
		beer, err := tx.GetBeer(ctx, id)
		if err != nil {
			return err
		}
		oldName, oldBrewery := beer.Name, beer.Brewery

		if upd.Name != nil {
			name := parse.CleanName(*upd.Name)
			if name == "" {
				return ErrBlankName
			}
			beer.Name = name
		}
		if upd.Brewery != nil {
			beer.Brewery = parse.CleanName(*upd.Brewery)
		}
		if upd.Type != nil {
			t := *upd.Type
			if t != "" && !c.vocab.Valid(t) {
				return &InvalidBeerTypeError{Type: t}
			}
			beer.Type = c.vocab.Abbreviate(t)
		}
		if upd.ABV != nil {
			beer.ABV = upd.ABV
		}
		if upd.Description != nil {
			beer.Description = *upd.Description
		}

		renamed := beer.Name != oldName || beer.Brewery != oldBrewery
		if renamed {
			other, err := tx.FindBeer(ctx, beer.Name, beer.Brewery)
			switch {
			case err == nil && other.ID != beer.ID:
				return ErrBeerExists
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return err
			}
			if _, err := c.WithStore(tx).addAlias(ctx, beer.ID, oldName, oldBrewery); err != nil {
				return err
			}
		}

		if err := tx.SaveBeer(ctx, beer); err != nil {
			return fmt.Errorf("save beer %d: %w", id, err)
		}
		out = beer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddAlias registers an alternate (name, brewery) pair for a beer. Adding an
// alias the beer already owns is a no-op.
func (c *Catalog) AddAlias(ctx context.Context, beerID int64, name, brewery string) (*model.BeerAlias, error) {
	var out *model.BeerAlias
	err := c.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetBeer(ctx, beerID); err != nil {
			return err
		}
		alias, err := c.WithStore(tx).addAlias(ctx, beerID, name, brewery)
		out = alias
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Catalog) addAlias(ctx context.Context, beerID int64, name, brewery string) (*model.BeerAlias, error) {
	name = parse.CleanName(name)
	brewery = parse.CleanName(brewery)
	if name == "" {
		return nil, ErrBlankName
	}

	existing, err := c.store.FindAlias(ctx, name, brewery)
	if err == nil {
		if existing.BeerID == beerID {
			return existing, nil
		}
		return nil, &DuplicateAliasError{Name: name, Brewery: brewery, BeerID: existing.BeerID}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find alias %q: %w", name, err)
	}

	alias := &model.BeerAlias{BeerID: beerID, Name: name, Brewery: brewery}
	if err := c.store.CreateAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("create alias %q for beer %d: %w", name, beerID, err)
	}
	return alias, nil
}

// ListAliases returns every alias of a beer.
func (c *Catalog) ListAliases(ctx context.Context, beerID int64) ([]model.BeerAlias, error) {
	if _, err := c.store.GetBeer(ctx, beerID); err != nil {
		return nil, err
	}
	return c.store.ListAliases(ctx, beerID)
}

// DeleteAlias removes an alias by ID.
func (c *Catalog) DeleteAlias(ctx context.Context, aliasID int64) error {
	return c.store.DeleteAlias(ctx, aliasID)
}

// MergeBeers folds source into target and deletes source. The source name
// stays resolvable as an alias of the target unless the alias is taken.
func (c *Catalog) MergeBeers(ctx context.Context, sourceID, targetID int64) (*model.Beer, error) {
	if sourceID == targetID {
		return nil, ErrSelfMerge
	}

	var out *model.Beer
	err := c.store.Transaction(ctx, func(tx store.Store) error {
		source, err := tx.GetBeer(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := tx.GetBeer(ctx, targetID)
		if err != nil {
			return err
		}

		if err := tx.ReassignBeer(ctx, sourceID, targetID); err != nil {
			return fmt.Errorf("merge beer %d into %d: %w", sourceID, targetID, err)
		}

		_, err = c.WithStore(tx).addAlias(ctx, targetID, source.Name, source.Brewery)
		var dup *DuplicateAliasError
		if err != nil && !errors.As(err, &dup) {
			return err
		}

		if target.Description == "" && source.Description != "" {
			target.Description = source.Description
			if err := tx.SaveBeer(ctx, target); err != nil {
				return err
			}
		}

		if err := tx.DeleteBeer(ctx, sourceID); err != nil {
			return err
		}
		out, err = tx.GetBeer(ctx, targetID)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("merged beers", zap.Int64("source_id", sourceID), zap.Int64("target_id", targetID))
	return out, nil
}

// DeleteBeer removes a beer and detaches it from bars, trackings and checks.
func (c *Catalog) DeleteBeer(ctx context.Context, id int64) error {
	return c.store.Transaction(ctx, func(tx store.Store) error {
		return tx.DeleteBeer(ctx, id)
	})
}
