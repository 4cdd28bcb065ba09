package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profile-sync/internal/domain"
)

type fakeCache struct {
	entries map[string]*domain.CacheEntry
	writes  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.CacheEntry)}
}

func (f *fakeCache) Read(userID string) (*domain.CacheEntry, bool) {
	e, ok := f.entries[userID]
	return e, ok
}

func (f *fakeCache) Write(userID string, profile *domain.Profile) error {
	f.writes++
	f.entries[userID] = &domain.CacheEntry{Profile: profile, WrittenAt: time.Now()}
	return nil
}

func (f *fakeCache) Invalidate(userID string) error {
	delete(f.entries, userID)
	return nil
}

type fakeRemote struct {
	profile    *domain.Profile
	profileErr error
	badges     []domain.EarnedBadge
	badgesErr  error

	profileCalls int
	badgesCalls  int
}

func (f *fakeRemote) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeRemote) GetBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	f.badgesCalls++
	if f.badgesErr != nil {
		return nil, f.badgesErr
	}
	return f.badges, nil
}

type fakeFetcher struct {
	stats    *domain.Stats
	fetchErr error

	fetchCalls      int
	synthesizeCalls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, userID string) (*domain.Stats, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.stats, nil
}

func (f *fakeFetcher) Synthesize(ctx context.Context, userID string) *domain.Stats {
	f.synthesizeCalls++
	return &domain.Stats{UserID: userID, CurrentLevel: 1, BadgesList: []string{}, XPToNextLevel: domain.XPPerLevel}
}

func testLoader(cache CacheStore, remote ProfileSource, stats StatsFetcher) *Loader {
	return New(cache, remote, stats, Options{
		BaseDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoadFreshHitSkipsNetwork(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{}
	l := testLoader(cache, remote, &fakeFetcher{})

	base := time.Now()
	cache.entries["u1"] = &domain.CacheEntry{
		Profile:   &domain.Profile{ID: "u1", DisplayName: "Mario"},
		WrittenAt: base,
	}
	l.SetNow(func() time.Time { return base.Add(4 * time.Minute) })

	res, err := l.Load(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, SourceFresh, res.Source)
	assert.Equal(t, "Mario", res.Profile.DisplayName)
	assert.Equal(t, 0, remote.profileCalls)
}

func TestLoadStaleHitRendersAndFlagsRevalidation(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{}
	l := testLoader(cache, remote, &fakeFetcher{})

	base := time.Now()
	cache.entries["u1"] = &domain.CacheEntry{
		Profile:   &domain.Profile{ID: "u1", DisplayName: "Mario"},
		WrittenAt: base,
	}
	l.SetNow(func() time.Time { return base.Add(59 * time.Minute) })

	res, err := l.Load(context.Background(), "u1")
	require.NoError(t, err)

	// The stale snapshot is returned synchronously; revalidation is the
	// caller's background job, not the loader's.
	assert.Equal(t, SourceStale, res.Source)
	assert.Equal(t, "Mario", res.Profile.DisplayName)
	assert.Equal(t, 0, remote.profileCalls)
}

func TestLoadExpiredEntryGoesRemote(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{profile: &domain.Profile{ID: "u1", DisplayName: "Luigi"}}
	l := testLoader(cache, remote, &fakeFetcher{})

	base := time.Now()
	cache.entries["u1"] = &domain.CacheEntry{
		Profile:   &domain.Profile{ID: "u1", DisplayName: "Mario"},
		WrittenAt: base,
	}
	l.SetNow(func() time.Time { return base.Add(61 * time.Minute) })

	res, err := l.Load(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "Luigi", res.Profile.DisplayName)
	assert.Equal(t, 1, remote.profileCalls)
	// The expired entry was replaced by the remote snapshot.
	entry, ok := cache.Read("u1")
	require.True(t, ok)
	assert.Equal(t, "Luigi", entry.Profile.DisplayName)
}

func TestLoadMissPathFailureIsTerminal(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{profileErr: errors.New("connection refused")}
	l := testLoader(cache, remote, &fakeFetcher{})

	_, err := l.Load(context.Background(), "u1")
	require.Error(t, err)
	// No fabricated identity lands in the cache.
	assert.Empty(t, cache.entries)
}

func TestReloadRejectsRecordWithoutIdentifier(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{profile: &domain.Profile{DisplayName: "nameless"}}
	l := testLoader(cache, remote, &fakeFetcher{})

	_, err := l.Reload(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
	assert.Empty(t, cache.entries)
}

func TestReloadNormalizesAndCaches(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{profile: &domain.Profile{ID: "u1", TotalXP: 250}}
	l := testLoader(cache, remote, &fakeFetcher{})

	p, err := l.Reload(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "Player", p.DisplayName)
	assert.Equal(t, 3, p.CurrentLevel)
	assert.Equal(t, 1, cache.writes)
}

func TestLoadStatsRetriesThenSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{stats: &domain.Stats{UserID: "u1", TotalXP: 100}}
	l := testLoader(newFakeCache(), &fakeRemote{}, fetcher)

	stats, ok := l.LoadStats(context.Background(), "u1")
	require.True(t, ok)
	assert.Equal(t, int64(100), stats.TotalXP)
	assert.Equal(t, 0, fetcher.synthesizeCalls)
}

func TestLoadStatsSynthesizesOnExhaustion(t *testing.T) {
	fetcher := &fakeFetcher{fetchErr: domain.ErrStatsNotFound}
	l := testLoader(newFakeCache(), &fakeRemote{}, fetcher)

	stats, ok := l.LoadStats(context.Background(), "u1")

	assert.False(t, ok)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.CurrentLevel)
	assert.Equal(t, 3, fetcher.fetchCalls)
	assert.Equal(t, 1, fetcher.synthesizeCalls)
}

func TestLoadBadgesDegradesToEmptyList(t *testing.T) {
	remote := &fakeRemote{badgesErr: errors.New("connection refused")}
	l := testLoader(newFakeCache(), remote, &fakeFetcher{})

	badges, ok := l.LoadBadges(context.Background(), "u1")

	assert.False(t, ok)
	assert.NotNil(t, badges)
	assert.Empty(t, badges)
	// Badges get the smaller retry bound.
	assert.Equal(t, 2, remote.badgesCalls)
}

func TestLoadBadgesDropsNamelessEntries(t *testing.T) {
	remote := &fakeRemote{badges: []domain.EarnedBadge{
		{Badge: domain.Badge{Name: "first-steps"}},
		{Badge: domain.Badge{}},
	}}
	l := testLoader(newFakeCache(), remote, &fakeFetcher{})

	badges, ok := l.LoadBadges(context.Background(), "u1")
	require.True(t, ok)
	require.Len(t, badges, 1)
	assert.Equal(t, "first-steps", badges[0].Name)
}

func TestPurgeForcesRemotePath(t *testing.T) {
	cache := newFakeCache()
	remote := &fakeRemote{profile: &domain.Profile{ID: "u1"}}
	l := testLoader(cache, remote, &fakeFetcher{})

	cache.entries["u1"] = &domain.CacheEntry{
		Profile:   &domain.Profile{ID: "u1"},
		WrittenAt: time.Now(),
	}

	l.Purge("u1")
	res, err := l.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, res.Source)
}
