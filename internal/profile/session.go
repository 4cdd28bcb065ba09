// Package profile is the public façade of the sync layer: one Session per
// signed-in user holding the current profile, stats and badge projections,
// with refresh and optimistic-update operations. Rendering components only
// ever talk to this package.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/profile-sync/internal/bus"
	"github.com/profile-sync/internal/domain"
	"github.com/profile-sync/internal/loader"
	"github.com/profile-sync/internal/validate"
)

// UpdateAwardReason labels the fixed point award granted for a successful
// profile update.
const UpdateAwardReason = "profile_update"

const backgroundTimeout = 30 * time.Second

// ProfileWriter is the remote data service's write surface.
type ProfileWriter interface {
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.Profile, error)
}

// PointsAwarder is the leveling collaborator.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, userID, reason string, amount int64) (int64, error)
}

// Publisher pushes state changes to rendering clients. Optional.
type Publisher interface {
	PublishProfile(userID string, p *domain.Profile)
	PublishStats(userID string, s *domain.Stats)
	PublishBadges(userID string, badges []domain.EarnedBadge)
}

// Notifier surfaces the closed set of degradation notices. Optional.
type Notifier interface {
	Notify(userID string, n domain.Notice)
}

// Deps bundles the session's collaborators.
type Deps struct {
	Loader    *loader.Loader
	Writer    ProfileWriter
	Awarder   PointsAwarder
	Bus       *bus.Bus
	Publisher Publisher
	Notifier  Notifier

	// AwardXP is the fixed point award for a successful profile update.
	AwardXP int64
	// SyncReloadDelay is how long to wait after a sync-complete signal
	// before reloading, letting upstream propagation settle.
	SyncReloadDelay time.Duration

	Logger *slog.Logger
}

// Session is a per-user façade instance. All state mutations funnel through
// it; completions from superseded loads are discarded via a generation
// counter rather than per-call cancellation tokens.
type Session struct {
	userID string
	deps   Deps
	logger *slog.Logger

	gen     atomic.Uint64
	cancels []func()
	now     func() time.Time

	mu          sync.RWMutex
	profile     *domain.Profile
	stats       *domain.Stats
	badges      []domain.EarnedBadge
	loading     bool
	dirty       bool
	lastUpdated time.Time
	reloadTimer *time.Timer
}

// NewSession creates a session and wires it to the bus signals for its user.
// Call Load to run the initial pipeline and Close when the user's views are
// gone.
func NewSession(userID string, deps Deps) *Session {
	if deps.AwardXP == 0 {
		deps.AwardXP = 10
	}
	if deps.SyncReloadDelay == 0 {
		deps.SyncReloadDelay = 500 * time.Millisecond
	}

	s := &Session{
		userID: userID,
		deps:   deps,
		logger: deps.Logger.With("user_id", userID),
		now:    time.Now,
	}

	s.cancels = append(s.cancels,
		deps.Bus.Subscribe(bus.ProfileSyncComplete, s.onSyncComplete),
		deps.Bus.Subscribe(bus.PointsUpdated, s.onPointsUpdated),
	)
	return s
}

// UserID returns the identifier this session is scoped to.
func (s *Session) UserID() string {
	return s.userID
}

// Load runs the full pipeline: profile (cache-first), then stats and badges
// in parallel. A stale cache hit renders immediately and revalidates in the
// background. Load never fails; total profile failure surfaces as a notice
// and leaves prior state untouched.
func (s *Session) Load(ctx context.Context) {
	gen := s.gen.Load()
	s.setLoading(true)
	defer s.setLoading(false)

	res, err := s.deps.Loader.Load(ctx, s.userID)
	if err != nil {
		s.logger.Error("profile load failed", "error", err)
		s.notify(domain.NoticeProfileUnavailable)
		return
	}

	s.logger.Debug("profile loaded", "source", res.Source.String())
	s.applyProfile(gen, res.Profile)

	if res.Source == loader.SourceStale {
		go s.revalidate(gen)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loadStats(ctx, gen)
	}()
	go func() {
		defer wg.Done()
		s.loadBadges(ctx, gen)
	}()
	wg.Wait()
}

// Refresh purges the cache entry and re-runs the full pipeline, forcing the
// synchronous remote path.
func (s *Session) Refresh(ctx context.Context) {
	s.gen.Add(1)
	s.deps.Loader.Purge(s.userID)
	s.Load(ctx)
}

// Update applies a partial profile change optimistically to in-memory state
// and the cache, then issues the remote write. On remote failure the local
// change is kept and the session is flagged dirty; there is no automatic
// rollback. A successful write triggers the fixed point award. Update always
// returns the (at least optimistically) updated profile; it never errors.
func (s *Session) Update(ctx context.Context, update domain.ProfileUpdate) *domain.Profile {
	if update.Empty() {
		return s.Profile()
	}

	s.mu.Lock()
	if s.profile == nil {
		s.mu.Unlock()
		s.logger.Warn("update requested before any profile was loaded")
		return nil
	}
	optimistic := update.ApplyTo(s.profile)
	optimistic.UpdatedAt = s.now()
	s.profile = optimistic
	s.lastUpdated = s.now()
	s.mu.Unlock()

	s.deps.Loader.CacheWrite(s.userID, optimistic)
	s.publishProfile(optimistic)

	confirmed, err := s.deps.Writer.UpdateProfile(ctx, s.userID, update)
	if err != nil {
		s.logger.Warn("remote profile update failed, keeping optimistic state", "error", err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return optimistic
	}

	if norm, ok := validate.Profile(confirmed); ok {
		s.mu.Lock()
		s.profile = norm
		s.dirty = false
		s.lastUpdated = s.now()
		s.mu.Unlock()
		s.deps.Loader.CacheWrite(s.userID, norm)
		s.publishProfile(norm)
	}

	if s.deps.Awarder != nil {
		if _, err := s.deps.Awarder.AwardPoints(ctx, s.userID, UpdateAwardReason, s.deps.AwardXP); err != nil {
			s.logger.Warn("profile update point award failed", "error", err)
		}
	}
	return s.Profile()
}

// Reset clears all in-memory state and purges the user's cache entry. Called
// on sign-out.
func (s *Session) Reset() {
	s.gen.Add(1)
	s.mu.Lock()
	s.stopReloadTimer()
	s.profile = nil
	s.stats = nil
	s.badges = nil
	s.dirty = false
	s.lastUpdated = time.Time{}
	s.mu.Unlock()
	s.deps.Loader.Purge(s.userID)
	s.logger.Info("session state cleared")
}

// Close unsubscribes from the bus and invalidates in-flight completions.
func (s *Session) Close() {
	s.gen.Add(1)
	s.mu.Lock()
	s.stopReloadTimer()
	s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
}

// stopReloadTimer drops any pending delayed reload. Callers hold s.mu.
func (s *Session) stopReloadTimer() {
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
		s.reloadTimer = nil
	}
}

// Profile returns the current profile snapshot, or nil before the first
// successful load.
func (s *Session) Profile() *domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// Stats returns the current stats snapshot, or nil before the first load.
func (s *Session) Stats() *domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Clone()
}

// Badges returns all earned badges, most recent first.
func (s *Session) Badges() []domain.EarnedBadge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EarnedBadge(nil), s.badges...)
}

// RecentBadges returns the three most recently earned badges.
func (s *Session) RecentBadges() []domain.EarnedBadge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.RecentBadges(s.badges)
}

// Loading reports whether a load pipeline is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Dirty reports whether an optimistic update is still unconfirmed by the
// remote service.
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// LastUpdated returns when in-memory state last changed.
func (s *Session) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// LastUpdatedDisplay returns a human-readable last-updated marker.
func (s *Session) LastUpdatedDisplay() string {
	s.mu.RLock()
	last := s.lastUpdated
	s.mu.RUnlock()

	if last.IsZero() {
		return "never"
	}
	age := s.now().Sub(last)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		return last.Format("Jan 2, 2006 15:04")
	}
}

// onSyncComplete reacts to an upstream sync-completed signal for this user
// with a short-delayed full reload. The timer is pinned to the current
// generation so a reset or close during the delay window cancels it; without
// that, a reload firing after sign-out would rewrite the cache entry the
// sign-out just purged.
func (s *Session) onSyncComplete(evt bus.Event) {
	if evt.UserID != s.userID {
		return
	}
	s.logger.Debug("sync-complete signal received, scheduling reload")
	gen := s.gen.Load()
	s.mu.Lock()
	s.stopReloadTimer()
	s.reloadTimer = time.AfterFunc(s.deps.SyncReloadDelay, func() {
		s.fullReload(gen)
	})
	s.mu.Unlock()
}

// onPointsUpdated reloads only the stats projection.
func (s *Session) onPointsUpdated(evt bus.Event) {
	if evt.UserID != s.userID {
		return
	}
	s.logger.Debug("points-updated signal received, reloading stats")
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()
	s.loadStats(ctx, s.gen.Load())
}

// revalidate performs the background half of stale-while-revalidate.
func (s *Session) revalidate(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	profile, err := s.deps.Loader.Reload(ctx, s.userID)
	if err != nil {
		// The stale snapshot is already rendered; background failure is
		// log-only.
		s.logger.Warn("background revalidation failed", "error", err)
		return
	}
	s.applyProfile(gen, profile)
}

// fullReload bypasses the cache for profile and auxiliary data alike. A
// reload carrying a superseded generation is dropped before it touches the
// network or the cache.
func (s *Session) fullReload(gen uint64) {
	if s.gen.Load() != gen {
		s.logger.Debug("discarding superseded reload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	profile, err := s.deps.Loader.Reload(ctx, s.userID)
	if err != nil {
		s.logger.Warn("full reload failed", "error", err)
		s.notify(domain.NoticeProfileUnavailable)
		return
	}
	s.applyProfile(gen, profile)
	s.loadStats(ctx, gen)
	s.loadBadges(ctx, gen)
}

func (s *Session) loadStats(ctx context.Context, gen uint64) {
	stats, ok := s.deps.Loader.LoadStats(ctx, s.userID)
	s.applyStats(gen, stats)
	if !ok {
		s.notify(domain.NoticeStatsUnavailable)
	}
}

func (s *Session) loadBadges(ctx context.Context, gen uint64) {
	badges, ok := s.deps.Loader.LoadBadges(ctx, s.userID)
	s.applyBadges(gen, badges)
	if !ok {
		s.notify(domain.NoticeBadgesUnavailable)
	}
}

func (s *Session) applyProfile(gen uint64, p *domain.Profile) {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded profile completion")
		return
	}
	s.profile = p
	s.lastUpdated = s.now()
	s.mu.Unlock()
	s.publishProfile(p)
}

func (s *Session) applyStats(gen uint64, stats *domain.Stats) {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded stats completion")
		return
	}
	s.stats = stats
	s.mu.Unlock()
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishStats(s.userID, stats)
	}
}

func (s *Session) applyBadges(gen uint64, badges []domain.EarnedBadge) {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded badges completion")
		return
	}
	s.badges = badges
	s.mu.Unlock()
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishBadges(s.userID, badges)
	}
}

func (s *Session) publishProfile(p *domain.Profile) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishProfile(s.userID, p)
	}
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Session) notify(n domain.Notice) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(s.userID, n)
	}
}
