package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/archive"
	"beer-scanner-backend/internal/fingerprint"
	"beer-scanner-backend/internal/menu"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/notification"
	"beer-scanner-backend/internal/store"
)

// ErrBarBusy is returned when a check is requested for a bar that is already being checked.
var ErrBarBusy = errors.New("bar is already being checked")

// RunSummary describes one orchestrator cycle.
type RunSummary struct {
	RunID     string
	Bars      int
	Completed int
	Failed    int
	Skipped   int
	Resumed   int

	// Dispatched counts notifications handed to the delivery workers.
	Dispatched int
}

// Service orchestrates menu checks: it selects due bars, fetches and fingerprints
// their menus, creates checks and hands them to the Processor.
type Service struct {
	cfg        config.ScraperConfig
	store      store.Store
	fetcher    menu.Fetcher
	processor  *Processor
	archive    *archive.Archive
	workerPool *notification.WorkerPool
	logger     *zap.Logger
	now        func() time.Time

	// busy holds the IDs of bars with a check in flight.
	busy sync.Map
}

// NewService creates and initializes a new scraper service. arch may be nil,
// in which case menu snapshots are stored inline on the check.
func NewService(cfg config.ScraperConfig, st store.Store, fetcher menu.Fetcher, processor *Processor,
	arch *archive.Archive, workerPool *notification.WorkerPool, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		fetcher:    fetcher,
		processor:  processor,
		archive:    arch,
		workerPool: workerPool,
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts the checking process in a loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("scraper is disabled, not starting")
		return
	}
	s.logger.Info("starting scraper service", zap.Duration("interval", s.cfg.Interval))

	s.workerPool.Start(ctx)

	s.CheckOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scraper service shutting down")
			return
		case <-timer.C:
			s.CheckOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// CheckOnce performs a single orchestrator cycle: check every due bar, resume
// checks left behind by earlier runs, then deliver unsent notifications.
// The worker pool must already be started.
func (s *Service) CheckOnce(ctx context.Context) RunSummary {
	runStart := s.now()
	sum := RunSummary{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", sum.RunID))
	log.Info("executing check cycle")

	var checkedBefore *time.Time
	if s.cfg.Freshness > 0 {
		t := runStart.Add(-s.cfg.Freshness)
		checkedBefore = &t
	}
	bars, err := s.store.ListBarsDue(ctx, checkedBefore)
	if err != nil {
		log.Error("failed to list bars due for checking", zap.Error(err))
		return sum
	}
	sum.Bars = len(bars)

	var mu sync.Mutex
	tally := func(check *model.Check, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, ErrBarBusy):
			sum.Skipped++
		case err != nil || check == nil || check.ProcessingStatus == model.CheckFailed:
			sum.Failed++
		default:
			sum.Completed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Concurrency, 1))
	for i := range bars {
		bar := &bars[i]
		g.Go(func() error {
			check, err := s.checkBar(gctx, bar, false)
			if err != nil && !errors.Is(err, ErrBarBusy) {
				log.Error("check failed", zap.Int64("bar_id", bar.ID), zap.Error(err))
			}
			tally(check, err)
			// One bar never aborts the others.
			return nil
		})
	}
	_ = g.Wait()

	sum.Resumed = s.resume(ctx, runStart, log)

	dispatched, err := s.workerPool.Sweep(ctx)
	if err != nil {
		log.Error("notification sweep failed", zap.Error(err))
	}
	sum.Dispatched = dispatched

	log.Info("check cycle finished",
		zap.Int("bars", sum.Bars),
		zap.Int("completed", sum.Completed),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("resumed", sum.Resumed),
		zap.Int("notifications", sum.Dispatched),
		zap.Duration("took", s.now().Sub(runStart)))
	return sum
}

// CheckBar runs one check for a single bar synchronously. force marks the menu
// as changed even when its fingerprint is unchanged.
func (s *Service) CheckBar(ctx context.Context, barID int64, force bool) (*model.Check, error) {
	bar, err := s.store.GetBar(ctx, barID)
	if err != nil {
		return nil, err
	}
	return s.checkBar(ctx, bar, force)
}

func (s *Service) checkBar(ctx context.Context, bar *model.Bar, force bool) (*model.Check, error) {
	if _, loaded := s.busy.LoadOrStore(bar.Key(), struct{}{}); loaded {
		return nil, ErrBarBusy
	}
	defer s.busy.Delete(bar.Key())

	log := s.logger.With(zap.Int64("bar_id", bar.ID))

	started := s.now()
	content, err := s.fetcher.Fetch(ctx, bar)
	fetchTime := s.now().Sub(started)
	if err != nil {
		log.Warn("menu fetch failed", zap.Error(err))
		return s.processor.RecordFetchFailure(ctx, bar, fetchTime, err)
	}

	hash := fingerprint.Of(content.Data)
	check := &model.Check{
		BarID:            bar.ID,
		MenuHash:         hash,
		ContentType:      content.ContentType,
		HasChanges:       fingerprint.HasChanges(bar.LastMenuHash, hash, force),
		Forced:           force,
		ProcessingStatus: model.CheckPending,
		ProcessDuration:  fetchTime.Milliseconds(),
	}
	if check.HasChanges {
		s.snapshot(ctx, check, content.Data, log)
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCheck(ctx, check); err != nil {
			return err
		}
		return tx.RecordFingerprint(ctx, bar.ID, hash, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("create check for bar %d: %w", bar.ID, err)
	}
	log.Debug("check created",
		zap.Int64("check_id", check.ID),
		zap.String("hash", hash),
		zap.Bool("has_changes", check.HasChanges))

	return s.processor.Process(ctx, check.ID)
}

// snapshot keeps the menu content on the check, in the archive when one is configured.
func (s *Service) snapshot(ctx context.Context, check *model.Check, data []byte, log *zap.Logger) {
	if s.archive != nil {
		key, err := s.archive.Put(ctx, check.BarID, check.MenuHash, data, check.ContentType)
		if err == nil {
			check.MenuObjectKey = key
			return
		}
		log.Warn("menu archive failed, storing content inline", zap.Error(err))
	}
	check.MenuContent = data
}

// resume re-runs checks that are still pending, or stuck processing since before this run.
func (s *Service) resume(ctx context.Context, runStart time.Time, log *zap.Logger) int {
	checks, err := s.store.ListChecksToResume(ctx, runStart)
	if err != nil {
		log.Error("failed to list checks to resume", zap.Error(err))
		return 0
	}

	resumed := 0
	for _, c := range checks {
		if ctx.Err() != nil {
			break
		}
		if _, busy := s.busy.Load(c.BarID); busy {
			continue
		}
		log.Info("resuming check", zap.Int64("check_id", c.ID), zap.Int64("bar_id", c.BarID),
			zap.String("status", string(c.ProcessingStatus)))
		if _, err := s.processor.Process(ctx, c.ID); err != nil {
			log.Error("resumed check failed", zap.Int64("check_id", c.ID), zap.Error(err))
			continue
		}
		resumed++
	}
	return resumed
}
