package publish

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Retry defaults; config may override.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
)

// Backoff computes jittered exponential delays: base * 2^attempt plus up
// to one second of uniform jitter. Retries are driven by an explicit
// attempt counter in the caller, never by recursion.
type Backoff struct {
	Base        time.Duration
	MaxAttempts int
}

// Delay returns the wait before retrying after the given zero-based
// attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	return d + time.Duration(rand.Int63n(int64(time.Second)))
}

// Attempts returns the configured retry budget.
func (b Backoff) Attempts() int {
	if b.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return b.MaxAttempts
}

// sleep waits out the attempt's delay, aborting promptly when ctx is
// cancelled.
func (b Backoff) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
