package orderbook

import (
	"context"
	"time"
)

// Backoff is an exponential delay policy for polling loops.
type Backoff struct {
	Initial    time.Duration // Delay before the second attempt
	Max        time.Duration // Upper bound on any delay (0 = unbounded)
	Multiplier float64       // Growth per attempt; <= 1 keeps the delay constant
}

// Delay returns the wait after the given zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	d := float64(b.Initial)
	if b.Multiplier > 1 {
		for i := 0; i < attempt; i++ {
			d *= b.Multiplier
			if b.Max > 0 && d >= float64(b.Max) {
				return b.Max
			}
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter
// case. Tests inject one that returns immediately.
type Sleeper func(ctx context.Context, d time.Duration) error

// Clock returns the current time.
type Clock func() time.Time

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
