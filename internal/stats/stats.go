package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
)

// Outcome summarises one processed check.
type Outcome struct {
	Changes  int
	Duration time.Duration
	Success  bool
}

// Aggregator keeps the per-bar scraper counters.
type Aggregator struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(m *metrics.Metrics) *Aggregator {
	return &Aggregator{metrics: m, now: time.Now}
}

// Record folds one terminal check into the bar's counters. It must be called
// exactly once per check, under the bar's lock.
func (a *Aggregator) Record(ctx context.Context, st store.Store, barID int64, o Outcome) (*model.ScraperStats, error) {
	s, err := st.GetStats(ctx, barID)
	if errors.Is(err, store.ErrNotFound) {
		s = &model.ScraperStats{BarID: barID}
	} else if err != nil {
		return nil, fmt.Errorf("load stats for bar %d: %w", barID, err)
	}

	s.TotalChecks++
	if o.Success {
		s.SuccessfulChecks++
	} else {
		s.FailedChecks++
	}
	s.TotalChangesDetected += int64(o.Changes)
	s.LastCheckTime = a.now()
	s.LastCheckDurationMs = o.Duration.Milliseconds()

	if err := st.SaveStats(ctx, s); err != nil {
		return nil, err
	}

	status := string(model.CheckCompleted)
	if !o.Success {
		status = string(model.CheckFailed)
	}
	a.metrics.ObserveCheck(status, o.Duration)
	return s, nil
}
