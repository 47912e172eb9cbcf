package worker

import (
	"context"
	"time"

	"github.com/chapterkit/doorman/pkg/domain/interfaces"
	"github.com/chapterkit/doorman/pkg/utils/logging"
)

// DefaultSessionMaxAge is how long an untouched onboarding session survives
const DefaultSessionMaxAge = 30 * time.Minute

// Sweeper is a cache or throttle table that can drop expired entries
type Sweeper interface {
	Sweep() int
}

// SweepFunc adapts a plain function to the Sweeper interface
type SweepFunc func() int

// Sweep calls f
func (f SweepFunc) Sweep() int {
	return f()
}

// CleanupWorker periodically reaps stale onboarding sessions and expired
// cache entries.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For horizontal scaling, session reaping needs leader election
type CleanupWorker struct {
	repo     interfaces.Repository
	sweepers []Sweeper
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCleanupWorker creates a cleanup worker. The sweepers are optional
// in-memory tables reaped alongside the session store.
func NewCleanupWorker(repo interfaces.Repository, interval time.Duration, sweepers ...Sweeper) *CleanupWorker {
	return &CleanupWorker{
		repo:     repo,
		sweepers: sweepers,
		interval: interval,
		maxAge:   DefaultSessionMaxAge,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// WithSessionMaxAge overrides the stale-session cutoff
func (w *CleanupWorker) WithSessionMaxAge(maxAge time.Duration) *CleanupWorker {
	w.maxAge = maxAge
	return w
}

// Start begins the background cleanup loop without blocking startup
func (w *CleanupWorker) Start(ctx context.Context) error {
	logging.Default().Info("Cleanup worker starting",
		"interval", w.interval.String(), "sessionMaxAge", w.maxAge.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *CleanupWorker) Stop() {
	logging.Default().Info("Cleanup worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Cleanup worker stopped")
}

func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.cleanup(ctx)

		case <-w.stopCh:
			logging.Default().Info("Cleanup worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Cleanup worker context cancelled")
			return
		}
	}
}

// cleanup performs a single reap cycle. Failures are logged and retried on
// the next tick.
func (w *CleanupWorker) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-w.maxAge)

	removed, err := w.repo.Session().DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logging.Default().Error("Session cleanup failed (will retry next interval)",
			"error", err.Error())
	} else if removed > 0 {
		logging.Default().Info("Reaped stale onboarding sessions", "count", removed)
	}

	var swept int
	for _, sweeper := range w.sweepers {
		swept += sweeper.Sweep()
	}
	if swept > 0 {
		logging.Default().Info("Swept expired entries", "count", swept)
	}
}
