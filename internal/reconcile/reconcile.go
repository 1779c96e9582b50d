package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"beer-scanner-backend/internal/catalog"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
)

// Result is the outcome of reconciling one menu against a bar's current beers.
type Result struct {
	Added      []model.Beer
	Removed    []model.Beer
	Continuing []model.Beer
}

// Changes returns the number of beers that came or went.
func (r *Result) Changes() int {
	return len(r.Added) + len(r.Removed)
}

// Engine diffs a freshly parsed menu against a bar's current availability.
type Engine struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(cat *catalog.Catalog, logger *zap.Logger) *Engine {
	return &Engine{catalog: cat, logger: logger, now: time.Now}
}

// Reconcile applies the menu to the bar through st. Beers on both the menu and
// the current set are re-verified, new beers are opened and missing beers are
// moved to history. Callers must serialise runs for the same bar.
func (e *Engine) Reconcile(ctx context.Context, st store.Store, barID int64, candidates []catalog.Candidate) (*Result, error) {
	now := e.now()
	log := e.logger.With(zap.Int64("bar_id", barID))
	cat := e.catalog.WithStore(st)

	seen := make(map[int64]struct{}, len(candidates))
	var menu []model.Beer
	for _, cand := range candidates {
		beer, _, err := cat.Resolve(ctx, cand)
		if errors.Is(err, catalog.ErrBlankName) {
			log.Debug("skipping candidate without name", zap.String("brewery", cand.Brewery))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", cand.Name, err)
		}
		if _, dup := seen[beer.Key()]; dup {
			continue
		}
		seen[beer.Key()] = struct{}{}
		menu = append(menu, *beer)
	}

	before, err := st.ListCurrent(ctx, barID)
	if err != nil {
		return nil, err
	}
	current := make(map[int64]model.CurrentAvailability, len(before))
	for _, row := range before {
		current[row.Beer.Key()] = row
	}

	res := &Result{}
	var verified []int64
	for _, beer := range menu {
		if _, ok := current[beer.Key()]; ok {
			verified = append(verified, beer.ID)
			res.Continuing = append(res.Continuing, beer)
			continue
		}

		closed, err := st.CloseOpenHistory(ctx, barID, beer.ID, now)
		if err != nil {
			return nil, err
		}
		if closed > 0 {
			log.Warn("closed dangling history window", zap.Int64("beer_id", beer.ID), zap.Int64("rows", closed))
		}
		if err := st.OpenCurrent(ctx, barID, beer.ID, now); err != nil {
			return nil, err
		}
		res.Added = append(res.Added, beer)
	}

	if err := st.VerifyCurrent(ctx, barID, verified, now); err != nil {
		return nil, err
	}

	for _, row := range before {
		if _, ok := seen[row.Beer.Key()]; ok {
			continue
		}
		if err := st.CloseCurrent(ctx, row, now); err != nil {
			return nil, err
		}
		res.Removed = append(res.Removed, row.Beer)
	}

	log.Info("reconciled menu",
		zap.Int("added", len(res.Added)),
		zap.Int("removed", len(res.Removed)),
		zap.Int("continuing", len(res.Continuing)))
	return res, nil
}
