// Package fetcher resolves a user's aggregate stats through an ordered chain
// of sources: the dedicated stats store first, then the remote computed
// procedure, then the reduced subset carried on the profile row. The chain
// commits to the first source that yields a record and never merges fields
// across sources; a "not found" result and a transport error both mean "try
// the next one".
package fetcher

import (
	"context"
	"log/slog"

	"github.com/profile-sync/internal/domain"
	"github.com/profile-sync/internal/validate"
)

// StatsStore is the dedicated aggregate-stats store.
type StatsStore interface {
	GetStats(ctx context.Context, userID string) (*domain.Stats, error)
	SetStats(ctx context.Context, userID string, stats *domain.Stats) error
}

// Remote is the relational data service's stats surface.
type Remote interface {
	ComputeStats(ctx context.Context, userID string) (*domain.Stats, error)
	GetProfileStats(ctx context.Context, userID string) (*domain.Stats, error)
}

// Fetcher walks the stats fallback chain.
type Fetcher struct {
	store  StatsStore
	remote Remote
	logger *slog.Logger
}

// New creates a stats fetcher.
func New(store StatsStore, remote Remote, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		store:  store,
		remote: remote,
		logger: logger,
	}
}

// Fetch tries the three remote strategies in order and returns the first
// normalized record. It errors only when every strategy came up empty, so
// callers can retry transient failures before falling back to Synthesize.
func (f *Fetcher) Fetch(ctx context.Context, userID string) (*domain.Stats, error) {
	// Strategy 1: direct lookup in the dedicated stats store.
	stats, err := f.store.GetStats(ctx, userID)
	if err == nil {
		return f.normalize(userID, stats), nil
	}
	f.logStrategyMiss("stats store lookup", userID, err)

	// Strategy 2: computed procedure against the remote service.
	stats, err = f.remote.ComputeStats(ctx, userID)
	if err == nil {
		return f.normalize(userID, stats), nil
	}
	f.logStrategyMiss("computed stats procedure", userID, err)

	// Strategy 3: reduced subset from the base profile record.
	stats, err = f.remote.GetProfileStats(ctx, userID)
	if err == nil {
		return f.normalize(userID, stats), nil
	}
	f.logStrategyMiss("profile stats subset", userID, err)

	return nil, domain.ErrStatsNotFound
}

// Synthesize fabricates the zero-state stats record, the guaranteed last
// strategy, and best-effort persists it to the stats store so the next fetch
// can take the direct path.
func (f *Fetcher) Synthesize(ctx context.Context, userID string) *domain.Stats {
	stats := validate.DefaultStats()
	stats.UserID = userID

	if err := f.store.SetStats(ctx, userID, stats); err != nil {
		f.logger.Warn("failed to persist synthesized stats", "user_id", userID, "error", err)
	} else {
		f.logger.Info("synthesized default stats", "user_id", userID)
	}
	return stats
}

func (f *Fetcher) normalize(userID string, stats *domain.Stats) *domain.Stats {
	out := validate.Stats(stats)
	out.UserID = userID
	return out
}

func (f *Fetcher) logStrategyMiss(strategy, userID string, err error) {
	if domain.IsNotFound(err) {
		f.logger.Debug("stats strategy yielded no record", "strategy", strategy, "user_id", userID)
		return
	}
	f.logger.Warn("stats strategy failed", "strategy", strategy, "user_id", userID, "error", err)
}
