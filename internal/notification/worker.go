package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/store"
)

type job struct {
	id   int64
	done func()
}

// WorkerPool manages a pool of workers delivering unsent notifications.
type WorkerPool struct {
	size      int
	batchSize int
	jobs      chan job
	store     store.Store
	transport Transport
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
	workers   sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, batchSize int, st store.Store, transport Transport, m *metrics.Metrics, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &WorkerPool{
		size:      size,
		batchSize: batchSize,
		jobs:      make(chan job, size), // Buffered channel
		store:     st,
		transport: transport,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.workers.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.workers.Wait()
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.workers.Done()
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case j := <-wp.jobs:
			wp.deliver(ctx, j.id)
			if j.done != nil {
				j.done()
			}
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Sweep hands every unsent notification to the workers and waits for the
// batch to finish. Start must have been called. It returns the number of
// notifications dispatched.
func (wp *WorkerPool) Sweep(ctx context.Context) (int, error) {
	ids, err := wp.store.ListUnsentNotificationIDs(ctx, wp.batchSize)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	dispatched := 0
	for _, id := range ids {
		wg.Add(1)
		select {
		case wp.jobs <- job{id: id, done: wg.Done}:
			dispatched++
		case <-ctx.Done():
			return dispatched, ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return dispatched, ctx.Err()
	}

	if dispatched > 0 {
		wp.logger.Info("notification sweep finished", zap.Int("dispatched", dispatched))
	}
	return dispatched, nil
}

// deliver claims a notification, hands it to the transport and releases the
// claim again when delivery fails so the next sweep retries it.
func (wp *WorkerPool) deliver(ctx context.Context, id int64) {
	log := wp.logger.With(zap.Int64("notification_id", id))

	claimed, err := wp.store.ClaimNotification(ctx, id, wp.now())
	if err != nil {
		log.Warn("failed to claim notification", zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	n, err := wp.store.GetNotification(ctx, id)
	if err == nil {
		err = wp.transport.Deliver(ctx, n)
	}
	if errors.Is(err, ErrNoRoute) {
		log.Debug("no delivery route, notification kept in-app")
		wp.metrics.IncDelivered("skipped")
		return
	}
	if err != nil {
		log.Warn("notification delivery failed", zap.Error(err))
		wp.metrics.IncDelivered("failed")
		if rerr := wp.store.ReleaseNotification(context.WithoutCancel(ctx), id); rerr != nil {
			log.Error("failed to release notification", zap.Error(rerr))
		}
		return
	}
	wp.metrics.IncDelivered("sent")
}
