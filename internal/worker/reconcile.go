// Package worker keeps the fast paths healthy in the background: it seeds
// the aggregate-stats store from the relational service so the direct-lookup
// strategy hits, and sweeps expired entries out of the profile cache.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/profile-sync/internal/cache"
	"github.com/profile-sync/internal/config"
	"github.com/profile-sync/internal/postgres"
	"github.com/profile-sync/internal/redis"
	"github.com/profile-sync/internal/validate"
)

// Reconciler periodically re-seeds stats and sweeps the profile cache.
type Reconciler struct {
	repo    *postgres.Repository
	stats   *redis.StatsStore
	cache   *cache.Store
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReconciler creates a reconcile worker.
func NewReconciler(
	repo *postgres.Repository,
	stats *redis.StatsStore,
	cacheStore *cache.Store,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:   repo,
		stats:  stats,
		cache:  cacheStore,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reconcile process
func (w *Reconciler) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconcile process
func (w *Reconciler) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *Reconciler) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the main worker loop
func (w *Reconciler) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// RunOnce runs a single reconcile cycle (useful for startup and manual
// triggers)
func (w *Reconciler) RunOnce(ctx context.Context) {
	w.reconcile(ctx)
}

func (w *Reconciler) reconcile(ctx context.Context) {
	w.logger.Info("starting reconcile cycle")
	startTime := time.Now()

	seeded, err := w.SeedStats(ctx)
	if err != nil {
		w.logger.Error("failed to seed stats store", "error", err)
	}

	swept, err := w.cache.SweepExpired()
	if err != nil {
		w.logger.Error("failed to sweep profile cache", "error", err)
	}

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"stats_seeded", seeded,
		"cache_swept", swept,
	)
}

// SeedStats recomputes stats for recently active users and writes them to
// the stats store, so the next fetch takes the cheap direct path.
func (w *Reconciler) SeedStats(ctx context.Context) (int, error) {
	since := time.Now().Add(-w.config.ActiveWindow)
	userIDs, err := w.repo.ListActiveUserIDs(ctx, since, w.config.BatchSize)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, userID := range userIDs {
		stats, err := w.repo.ComputeStats(ctx, userID)
		if err != nil {
			w.logger.Warn("failed to compute stats for seeding", "user_id", userID, "error", err)
			continue
		}
		normalized := validate.Stats(stats)
		normalized.UserID = userID
		if err := w.stats.SetStats(ctx, userID, normalized); err != nil {
			w.logger.Warn("failed to seed stats", "user_id", userID, "error", err)
			continue
		}
		seeded++
	}
	return seeded, nil
}
