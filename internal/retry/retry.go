// Package retry wraps fallible load operations with a bounded, linearly
// backed-off retry. On exhaustion it hands back the caller's fallback value
// rather than an error, so a failed auxiliary load degrades to a local
// default instead of breaking the render.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for the loader bounds.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second

	// Badges are non-critical to core profile rendering, so their loader
	// gives up sooner.
	BadgesMaxAttempts = 2
)

// linearBackOff waits base×1 before the second attempt, base×2 before the
// third, and so on. Deliberately not exponential: the sources being retried
// recover on human timescales and a couple of short waits is all we want.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// Do invokes op up to maxAttempts times, waiting baseDelay×(attempt−1)
// between attempts. It returns the first successful value, or (fallback,
// false) once attempts are exhausted or the context is done. It never returns
// an error: the second result tells the caller whether to surface a single
// degradation notice.
func Do[T any](
	ctx context.Context,
	logger *slog.Logger,
	name string,
	maxAttempts int,
	baseDelay time.Duration,
	op func(ctx context.Context) (T, error),
	fallback T,
) (T, bool) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var out T
	attempt := 0
	wrapped := func() error {
		attempt++
		v, err := op(ctx)
		if err != nil {
			logger.Warn("load attempt failed",
				"operation", name,
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err,
			)
			return err
		}
		out = v
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: baseDelay}, uint64(maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(wrapped, b); err != nil {
		logger.Warn("load exhausted retries, committing fallback",
			"operation", name,
			"attempts", attempt,
		)
		return fallback, false
	}
	return out, true
}
