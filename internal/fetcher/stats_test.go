package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profile-sync/internal/domain"
	"github.com/profile-sync/internal/validate"
)

type fakeStore struct {
	stats  *domain.Stats
	getErr error
	setErr error

	saved *domain.Stats
}

func (f *fakeStore) GetStats(ctx context.Context, userID string) (*domain.Stats, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stats, nil
}

func (f *fakeStore) SetStats(ctx context.Context, userID string, stats *domain.Stats) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.saved = stats
	return nil
}

type fakeRemote struct {
	computed    *domain.Stats
	computedErr error
	subset      *domain.Stats
	subsetErr   error

	computedCalls int
	subsetCalls   int
}

func (f *fakeRemote) ComputeStats(ctx context.Context, userID string) (*domain.Stats, error) {
	f.computedCalls++
	if f.computedErr != nil {
		return nil, f.computedErr
	}
	return f.computed, nil
}

func (f *fakeRemote) GetProfileStats(ctx context.Context, userID string) (*domain.Stats, error) {
	f.subsetCalls++
	if f.subsetErr != nil {
		return nil, f.subsetErr
	}
	return f.subset, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchCommitsToFirstStrategy(t *testing.T) {
	store := &fakeStore{stats: &domain.Stats{TotalXP: 300}}
	remote := &fakeRemote{}
	f := New(store, remote, testLogger())

	got, err := f.Fetch(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(300), got.TotalXP)
	assert.Equal(t, "u1", got.UserID)
	// Later strategies must not be consulted once one yields a record.
	assert.Equal(t, 0, remote.computedCalls)
	assert.Equal(t, 0, remote.subsetCalls)
}

func TestFetchFallsThroughToComputed(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrStatsNotFound}
	remote := &fakeRemote{computed: &domain.Stats{TotalXP: 150, WeeklyXP: 40}}
	f := New(store, remote, testLogger())

	got, err := f.Fetch(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(150), got.TotalXP)
	assert.Equal(t, int64(40), got.WeeklyXP)
	assert.Equal(t, 0, remote.subsetCalls)
}

func TestFetchProfileSubsetIsNotMergedWithDefaults(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrStatsNotFound}
	remote := &fakeRemote{
		computedErr: errors.New("connection refused"),
		subset:      &domain.Stats{TotalXP: 250, CurrentLevel: 3},
	}
	f := New(store, remote, testLogger())

	got, err := f.Fetch(context.Background(), "u1")
	require.NoError(t, err)

	// The committed record is exactly the normalized subset, field for field.
	want := validate.Stats(&domain.Stats{TotalXP: 250, CurrentLevel: 3})
	want.UserID = "u1"
	assert.Equal(t, want, got)
	assert.Equal(t, 50, got.LevelProgress)
	assert.Equal(t, 0, got.BadgesCount)
}

func TestFetchErrorsWhenEveryStrategyMisses(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrStatsNotFound}
	remote := &fakeRemote{
		computedErr: domain.ErrStatsNotFound,
		subsetErr:   domain.ErrProfileNotFound,
	}
	f := New(store, remote, testLogger())

	_, err := f.Fetch(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStatsNotFound)
}

func TestSynthesizePersistsZeroState(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrStatsNotFound}
	f := New(store, &fakeRemote{}, testLogger())

	got := f.Synthesize(context.Background(), "u1")

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 1, got.CurrentLevel)
	assert.Equal(t, int64(0), got.TotalXP)
	require.NotNil(t, store.saved)
	assert.Equal(t, got, store.saved)
}

func TestSynthesizeSurvivesStoreFailure(t *testing.T) {
	store := &fakeStore{setErr: errors.New("connection refused")}
	f := New(store, &fakeRemote{}, testLogger())

	got := f.Synthesize(context.Background(), "u1")
	require.NotNil(t, got)
	assert.Equal(t, 1, got.CurrentLevel)
}
