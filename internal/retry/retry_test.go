package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, ok := Do(context.Background(), testLogger(), "op", 3, time.Millisecond,
		func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		}, 0)

	require.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpToBound(t *testing.T) {
	calls := 0
	got, ok := Do(context.Background(), testLogger(), "op", 3, time.Millisecond,
		func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		}, "fallback")

	assert.False(t, ok)
	assert.Equal(t, "fallback", got)
	assert.Equal(t, 3, calls)
}

func TestDoRecoversOnLaterAttempt(t *testing.T) {
	calls := 0
	got, ok := Do(context.Background(), testLogger(), "op", 3, time.Millisecond,
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("boom")
			}
			return 7, nil
		}, -1)

	require.True(t, ok)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)
}

func TestDoLinearDelays(t *testing.T) {
	var stamps []time.Time
	Do(context.Background(), testLogger(), "op", 3, 20*time.Millisecond,
		func(ctx context.Context) (int, error) {
			stamps = append(stamps, time.Now())
			return 0, errors.New("boom")
		}, 0)

	require.Len(t, stamps, 3)
	// First wait is base, second is base*2.
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	got, ok := Do(ctx, testLogger(), "op", 5, time.Hour,
		func(ctx context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("boom")
		}, 99)

	assert.False(t, ok)
	assert.Equal(t, 99, got)
	assert.Equal(t, 1, calls)
}

func TestLinearBackOffSequence(t *testing.T) {
	b := &linearBackOff{base: time.Second}

	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 3*time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.NextBackOff())
}
