package orderbook

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"zero policy", Backoff{}, 3, 0},
		{"constant", Backoff{Initial: 500 * time.Millisecond}, 7, 500 * time.Millisecond},
		{"first attempt", Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}, 0, 100 * time.Millisecond},
		{"doubles", Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}, 3, 800 * time.Millisecond},
		{"capped", Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}, 4, time.Second},
		{"large attempt stays capped", Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}, 500, time.Second},
		{"initial above max", Backoff{Initial: 5 * time.Second, Max: time.Second}, 0, time.Second},
		{"unbounded", Backoff{Initial: time.Millisecond, Multiplier: 10}, 3, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	t.Run("waits", func(t *testing.T) {
		start := time.Now()
		if err := SleepContext(context.Background(), 10*time.Millisecond); err != nil {
			t.Fatalf("SleepContext failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Errorf("returned after %v, want >= 10ms", elapsed)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("SleepContext() error = %v, want context.Canceled", err)
		}
	})

	t.Run("zero delay reports ctx state", func(t *testing.T) {
		if err := SleepContext(context.Background(), 0); err != nil {
			t.Errorf("SleepContext(0) error = %v, want nil", err)
		}
	})
}
