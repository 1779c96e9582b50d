package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"beer-scanner-backend/internal/archive"
	"beer-scanner-backend/internal/events"
	"beer-scanner-backend/internal/menu"
	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/notification"
	"beer-scanner-backend/internal/reconcile"
	"beer-scanner-backend/internal/stats"
	"beer-scanner-backend/internal/store"
	"beer-scanner-backend/internal/telemetry"
)

// timing splits a check's duration into the orchestrator's fetch time and
// the processor's own work.
type timing struct {
	fetched time.Duration
	started time.Time
}

func (t timing) total(now time.Time) time.Duration {
	return t.fetched + now.Sub(t.started)
}

// Processor drives a single Check from PENDING to COMPLETED or FAILED.
type Processor struct {
	store      store.Store
	parser     menu.Parser
	archive    *archive.Archive
	engine     *reconcile.Engine
	dispatcher *notification.Dispatcher
	stats      *stats.Aggregator
	metrics    *metrics.Metrics
	publisher  events.Publisher
	reporter   *telemetry.Reporter
	locks      *reconcile.BarLocker
	logger     *zap.Logger
	now        func() time.Time
}

// ProcessorDeps groups the collaborators of a Processor. Archive, Metrics,
// Publisher and Reporter are optional.
type ProcessorDeps struct {
	Store      store.Store
	Parser     menu.Parser
	Archive    *archive.Archive
	Engine     *reconcile.Engine
	Dispatcher *notification.Dispatcher
	Stats      *stats.Aggregator
	Metrics    *metrics.Metrics
	Publisher  events.Publisher
	Reporter   *telemetry.Reporter
	Logger     *zap.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(d ProcessorDeps) *Processor {
	pub := d.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:      d.Store,
		parser:     d.Parser,
		archive:    d.Archive,
		engine:     d.Engine,
		dispatcher: d.Dispatcher,
		stats:      d.Stats,
		metrics:    d.Metrics,
		publisher:  pub,
		reporter:   d.Reporter,
		locks:      &reconcile.BarLocker{},
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs the check with the given ID. A check that is already terminal
// is returned untouched. Parse and reconciliation failures end in a FAILED
// check and a nil error; an error is only returned when the check's state
// could not be loaded or persisted.
func (p *Processor) Process(ctx context.Context, checkID int64) (*model.Check, error) {
	check, err := p.store.GetCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check.ProcessingStatus.Terminal() {
		return check, nil
	}

	unlock := p.locks.Lock(check.BarID)
	defer unlock()

	// Reload under the lock; another worker may have finished it meanwhile.
	check, err = p.store.GetCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check.ProcessingStatus.Terminal() {
		return check, nil
	}

	bar := check.Bar
	log := p.logger.With(zap.Int64("bar_id", check.BarID), zap.Int64("check_id", check.ID))
	// ProcessDuration holds the fetch time until the check is finished.
	t := timing{fetched: time.Duration(check.ProcessDuration) * time.Millisecond, started: p.now()}

	if err := p.store.UpdateCheckStatus(ctx, check.ID, model.CheckProcessing); err != nil {
		return nil, err
	}
	check.ProcessingStatus = model.CheckProcessing

	// A newer check already applied a later menu; replaying this snapshot would roll it back.
	superseded := false
	if check.HasChanges {
		newer, err := p.store.NewerChangedCheck(ctx, check.BarID, check.ID)
		switch {
		case err == nil:
			superseded = true
			log.Info("check superseded, skipping reconciliation", zap.Int64("newer_check_id", newer.ID))
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	res := &reconcile.Result{}
	if check.HasChanges && !superseded {
		res, err = p.reconcile(ctx, check, &bar, t)
	} else {
		err = p.store.Transaction(ctx, func(tx store.Store) error {
			return p.finish(ctx, tx, check, nil, t)
		})
	}
	if err != nil {
		log.Warn("check failed", zap.Error(err))
		return p.fail(ctx, check, t, err)
	}

	p.metrics.AddBeersChanged(len(res.Added), len(res.Removed))
	log.Info("check completed",
		zap.Bool("has_changes", check.HasChanges),
		zap.Int("added", len(res.Added)),
		zap.Int("removed", len(res.Removed)),
		zap.Int64("duration_ms", check.ProcessDuration))
	p.publish(ctx, check, res)
	return check, nil
}

// reconcile parses the stored menu and applies it to the bar in one transaction.
func (p *Processor) reconcile(ctx context.Context, check *model.Check, bar *model.Bar, t timing) (*reconcile.Result, error) {
	content, err := p.content(ctx, check)
	if err != nil {
		return nil, err
	}
	candidates, err := p.parser.Extract(ctx, content, check.ContentType, bar.AIInstructions)
	if err != nil {
		return nil, err
	}

	var res *reconcile.Result
	err = p.store.Transaction(ctx, func(tx store.Store) error {
		r, err := p.engine.Reconcile(ctx, tx, bar.ID, candidates)
		if err != nil {
			return err
		}
		if err := tx.SetCheckBeers(ctx, check.ID, r.Added, r.Removed); err != nil {
			return err
		}
		if _, err := p.dispatcher.BeerAvailable(ctx, tx, bar, r.Added); err != nil {
			return err
		}
		if _, err := p.dispatcher.MenuChanged(ctx, tx, bar); err != nil {
			return err
		}
		res = r
		return p.finish(ctx, tx, check, r, t)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// finish marks the check COMPLETED and folds it into the bar's stats.
func (p *Processor) finish(ctx context.Context, tx store.Store, check *model.Check, res *reconcile.Result, t timing) error {
	changes := 0
	if res != nil {
		changes = res.Changes()
		check.BeersAdded = res.Added
		check.BeersRemoved = res.Removed
	}
	total := t.total(p.now())

	check.ProcessingStatus = model.CheckCompleted
	check.ProcessDuration = total.Milliseconds()
	check.ErrorMessage = ""
	if err := tx.SaveCheckResult(ctx, check); err != nil {
		return err
	}
	_, err := p.stats.Record(ctx, tx, check.BarID, stats.Outcome{
		Changes:  changes,
		Duration: total,
		Success:  true,
	})
	return err
}

// fail marks the check FAILED. The elapsed time up to the failure is still counted.
func (p *Processor) fail(ctx context.Context, check *model.Check, t timing, cause error) (*model.Check, error) {
	total := t.total(p.now())

	check.ProcessingStatus = model.CheckFailed
	check.ProcessDuration = total.Milliseconds()
	check.ErrorMessage = cause.Error()
	check.BeersAdded = nil
	check.BeersRemoved = nil

	// The caller's context may already be done; the failure must still be recorded.
	ctx = context.WithoutCancel(ctx)
	err := p.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.SaveCheckResult(ctx, check); err != nil {
			return err
		}
		_, err := p.stats.Record(ctx, tx, check.BarID, stats.Outcome{Duration: total})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record failure of check %d: %w", check.ID, err)
	}

	p.reporter.CaptureCheckFailure(cause, check.BarID, check.ID)
	p.publish(ctx, check, &reconcile.Result{})
	return check, nil
}

// RecordFetchFailure stores a FAILED check for a menu that could not be fetched.
// The bar's fingerprint is left untouched.
func (p *Processor) RecordFetchFailure(ctx context.Context, bar *model.Bar, fetchTime time.Duration, cause error) (*model.Check, error) {
	unlock := p.locks.Lock(bar.ID)
	defer unlock()

	check := &model.Check{
		BarID:            bar.ID,
		ProcessingStatus: model.CheckFailed,
		ProcessDuration:  fetchTime.Milliseconds(),
		ErrorMessage:     cause.Error(),
	}
	err := p.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCheck(ctx, check); err != nil {
			return err
		}
		_, err := p.stats.Record(ctx, tx, bar.ID, stats.Outcome{Duration: fetchTime})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record fetch failure for bar %d: %w", bar.ID, err)
	}

	p.reporter.CaptureCheckFailure(cause, bar.ID, check.ID)
	p.publish(ctx, check, &reconcile.Result{})
	return check, nil
}

// content returns the menu snapshot of the check, inline or from the archive.
func (p *Processor) content(ctx context.Context, check *model.Check) ([]byte, error) {
	if check.MenuObjectKey == "" {
		if len(check.MenuContent) == 0 {
			return nil, errors.New("check has no stored menu content")
		}
		return check.MenuContent, nil
	}
	if p.archive == nil {
		return nil, fmt.Errorf("menu %s is archived but no archive is configured", check.MenuObjectKey)
	}
	return p.archive.Get(ctx, check.MenuObjectKey)
}

func (p *Processor) publish(ctx context.Context, check *model.Check, res *reconcile.Result) {
	ev := events.CheckEvent{
		BarID:      check.BarID,
		CheckID:    check.ID,
		Status:     string(check.ProcessingStatus),
		HasChanges: check.HasChanges,
		Added:      beerNames(res.Added),
		Removed:    beerNames(res.Removed),
		At:         p.now(),
	}
	if err := p.publisher.PublishCheck(ctx, ev); err != nil {
		p.logger.Warn("failed to publish check event",
			zap.Int64("bar_id", check.BarID), zap.Int64("check_id", check.ID), zap.Error(err))
	}
}

func beerNames(beers []model.Beer) []string {
	names := make([]string, 0, len(beers))
	for _, b := range beers {
		names = append(names, b.Name)
	}
	return names
}
