// Package loader implements the staleness-aware profile load pipeline:
// cache-first reads, a stale-while-revalidate policy for usable-but-aging
// entries, and retried auxiliary loads that always degrade to local defaults
// instead of failing.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/profile-sync/internal/domain"
	"github.com/profile-sync/internal/retry"
	"github.com/profile-sync/internal/validate"
)

// Source says where a loaded profile came from.
type Source int

const (
	// SourceFresh is a cache hit young enough to need no network traffic.
	SourceFresh Source = iota
	// SourceStale is a usable cache hit that should be revalidated in the
	// background.
	SourceStale
	// SourceRemote is a synchronous network load (cache miss or forced
	// reload).
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceFresh:
		return "cache-fresh"
	case SourceStale:
		return "cache-stale"
	default:
		return "remote"
	}
}

// CacheStore is the persistent per-user profile cache.
type CacheStore interface {
	Read(userID string) (*domain.CacheEntry, bool)
	Write(userID string, profile *domain.Profile) error
	Invalidate(userID string) error
}

// ProfileSource is the remote data service's read surface.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error)
}

// StatsFetcher is the multi-strategy stats fallback chain.
type StatsFetcher interface {
	Fetch(ctx context.Context, userID string) (*domain.Stats, error)
	Synthesize(ctx context.Context, userID string) *domain.Stats
}

// Options bounds the loader's cache windows and retry policy. Zero values
// fall back to the documented defaults.
type Options struct {
	StaleAfter     time.Duration
	ExpireAfter    time.Duration
	StatsAttempts  int
	BadgesAttempts int
	BaseDelay      time.Duration
}

func (o *Options) applyDefaults() {
	if o.StaleAfter == 0 {
		o.StaleAfter = domain.DefaultStaleAfter
	}
	if o.ExpireAfter == 0 {
		o.ExpireAfter = domain.DefaultExpireAfter
	}
	if o.StatsAttempts == 0 {
		o.StatsAttempts = retry.DefaultMaxAttempts
	}
	if o.BadgesAttempts == 0 {
		o.BadgesAttempts = retry.BadgesMaxAttempts
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = retry.DefaultBaseDelay
	}
}

// Result is a loaded profile plus its provenance.
type Result struct {
	Profile *domain.Profile
	Source  Source
}

// Loader orchestrates cache-first profile reads and retried auxiliary loads.
type Loader struct {
	cache  CacheStore
	remote ProfileSource
	stats  StatsFetcher
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// New creates a loader.
func New(cache CacheStore, remote ProfileSource, stats StatsFetcher, opts Options, logger *slog.Logger) *Loader {
	opts.applyDefaults()
	return &Loader{
		cache:  cache,
		remote: remote,
		stats:  stats,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

// Load resolves a profile cache-first. A fresh hit costs no network traffic;
// a stale hit is returned immediately with SourceStale so the caller can
// revalidate in the background; a miss (including an expired entry, which is
// discarded) falls through to a synchronous remote load. A remote failure on
// the miss path is terminal for this load cycle: a profile identity is never
// fabricated locally.
func (l *Loader) Load(ctx context.Context, userID string) (*Result, error) {
	if entry, ok := l.cache.Read(userID); ok {
		age := entry.Age(l.now())
		switch {
		case age < l.opts.StaleAfter:
			l.logger.Debug("profile cache hit", "user_id", userID, "age", age)
			return &Result{Profile: entry.Profile, Source: SourceFresh}, nil
		case age < l.opts.ExpireAfter:
			l.logger.Debug("profile cache hit, stale", "user_id", userID, "age", age)
			return &Result{Profile: entry.Profile, Source: SourceStale}, nil
		default:
			l.logger.Debug("profile cache entry expired", "user_id", userID, "age", age)
			if err := l.cache.Invalidate(userID); err != nil {
				l.logger.Warn("failed to drop expired cache entry", "user_id", userID, "error", err)
			}
		}
	}

	profile, err := l.Reload(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Profile: profile, Source: SourceRemote}, nil
}

// Reload always goes to the remote service, normalizes the record, and
// overwrites the cache entry (last-writer-wins).
func (l *Loader) Reload(ctx context.Context, userID string) (*domain.Profile, error) {
	raw, err := l.remote.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	profile, ok := validate.Profile(raw)
	if !ok {
		return nil, domain.ErrInvalidProfile
	}

	if err := l.cache.Write(userID, profile); err != nil {
		l.logger.Warn("failed to cache profile", "user_id", userID, "error", err)
	}
	return profile, nil
}

// Purge drops the user's cache entry, forcing the next Load down the remote
// path.
func (l *Loader) Purge(userID string) {
	if err := l.cache.Invalidate(userID); err != nil {
		l.logger.Warn("failed to purge cache entry", "user_id", userID, "error", err)
	}
}

// CacheWrite stores a snapshot directly, used for optimistic local updates.
func (l *Loader) CacheWrite(userID string, profile *domain.Profile) {
	if err := l.cache.Write(userID, profile); err != nil {
		l.logger.Warn("failed to cache profile", "user_id", userID, "error", err)
	}
}

// LoadStats resolves stats through the fallback chain with bounded retries.
// When retries are exhausted it commits the synthesized zero-state record and
// returns false so the caller can surface a single notice.
func (l *Loader) LoadStats(ctx context.Context, userID string) (*domain.Stats, bool) {
	stats, ok := retry.Do(ctx, l.logger, "load stats",
		l.opts.StatsAttempts, l.opts.BaseDelay,
		func(ctx context.Context) (*domain.Stats, error) {
			return l.stats.Fetch(ctx, userID)
		},
		nil,
	)
	if !ok || stats == nil {
		return l.stats.Synthesize(ctx, userID), false
	}
	return stats, true
}

// LoadBadges fetches the earned-badge list with bounded retries, degrading
// to an empty list on exhaustion.
func (l *Loader) LoadBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, bool) {
	return retry.Do(ctx, l.logger, "load badges",
		l.opts.BadgesAttempts, l.opts.BaseDelay,
		func(ctx context.Context) ([]domain.EarnedBadge, error) {
			raw, err := l.remote.GetBadges(ctx, userID)
			if err != nil {
				return nil, err
			}
			return validate.Badges(raw), nil
		},
		[]domain.EarnedBadge{},
	)
}

// SetNow overrides the clock; tests use this to step through the cache
// freshness windows.
func (l *Loader) SetNow(now func() time.Time) {
	l.now = now
}
