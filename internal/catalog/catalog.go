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

// Candidate is a beer as read off a menu, before it is matched to the catalog.
type Candidate struct {
	Name        string   `json:"name"`
	Brewery     string   `json:"brewery"`
	Type        string   `json:"type"`
	ABV         *float64 `json:"abv"`
	Description string   `json:"description"`
}

// Catalog resolves candidates to canonical beers and administers the beer catalog.
type Catalog struct {
	store  store.Store
	vocab  *parse.Vocabulary
	logger *zap.Logger
}

// New creates a Catalog.
func New(st store.Store, vocab *parse.Vocabulary, logger *zap.Logger) *Catalog {
	if vocab == nil {
		vocab = parse.DefaultVocabulary()
	}
	return &Catalog{store: st, vocab: vocab, logger: logger}
}

// WithStore returns a copy of the catalog bound to st, typically a transaction.
func (c *Catalog) WithStore(st store.Store) *Catalog {
	cp := *c
	cp.store = st
	return &cp
}

// Vocabulary exposes the style vocabulary used for validation.
func (c *Catalog) Vocabulary() *parse.Vocabulary {
	return c.vocab
}

// Resolve maps a candidate to a beer. Lookup order is the exact (name, brewery)
// pair, then an alias, then a newly created beer. The boolean reports whether
// the beer already existed.
func (c *Catalog) Resolve(ctx context.Context, cand Candidate) (*model.Beer, bool, error) {
	name := parse.CleanName(cand.Name)
	brewery := parse.CleanName(cand.Brewery)
	if name == "" {
		return nil, false, ErrBlankName
	}

	beer, err := c.store.FindBeer(ctx, name, brewery)
	if err == nil {
		return beer, true, c.backfill(ctx, beer, cand)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("find beer %q: %w", name, err)
	}

	beer, err = c.store.FindBeerByAlias(ctx, name, brewery)
	if err == nil {
		return beer, true, c.backfill(ctx, beer, cand)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("find alias %q: %w", name, err)
	}

	beer = &model.Beer{
		Name:        name,
		Brewery:     brewery,
		Type:        c.vocab.Abbreviate(cand.Type),
		ABV:         cand.ABV,
		Description: cand.Description,
	}
	// A savepoint keeps the surrounding transaction usable if another bar created the beer first.
	err = c.store.Transaction(ctx, func(tx store.Store) error {
		return tx.CreateBeer(ctx, beer)
	})
	if err != nil {
		existing, ferr := c.store.FindBeer(ctx, name, brewery)
		if ferr == nil {
			return existing, true, c.backfill(ctx, existing, cand)
		}
		return nil, false, fmt.Errorf("create beer %q: %w", name, err)
	}

	c.logger.Debug("created beer", zap.Int64("beer_id", beer.ID), zap.String("name", name), zap.String("brewery", brewery))
	return beer, false, nil
}

// backfill sets the description of an existing beer when it has none yet.
func (c *Catalog) backfill(ctx context.Context, beer *model.Beer, cand Candidate) error {
	if beer.Description != "" || cand.Description == "" {
		return nil
	}
	beer.Description = cand.Description
	if err := c.store.SaveBeer(ctx, beer); err != nil {
		return fmt.Errorf("backfill description of beer %d: %w", beer.ID, err)
	}
	return nil
}
