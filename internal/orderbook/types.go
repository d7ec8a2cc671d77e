package orderbook

import (
	"context"
	"time"

	"github.com/rickgao/depthbook/internal/model"
)

// State is the engine's sync state.
type State int32

const (
	StateUninitialized State = iota
	StateSyncing
	StateLive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateSyncing:
		return "SYNCING"
	case StateLive:
		return "LIVE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SnapshotProvider fetches a full depth snapshot. api.Client implements it.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context, symbol string) (model.Snapshot, error)
}

// AppliedHandler is called on the engine goroutine once per applied diff.
// It may call the engine's consumer-side queries (BestBid, BestAsk, Spread).
type AppliedHandler func(model.AppliedUpdate)

// Config holds the engine's retry budgets and poll policies.
type Config struct {
	Symbol string

	ReadyAttempts         int // Polls of the ready flag before ErrBufferUnavailable
	PeekAttempts          int // Polls for a first buffered update before ErrBufferUnavailable
	SnapshotAttempts      int // Snapshot fetches allowed to fail with a transport error
	StaleSnapshotAttempts int // Snapshots allowed to be older than the first update

	SyncBackoff Backoff // Delay between sync retries
	IdleBackoff Backoff // Delay while live and the buffer is empty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadyAttempts:         60,
		PeekAttempts:          20,
		SnapshotAttempts:      5,
		StaleSnapshotAttempts: 10,
		SyncBackoff: Backoff{
			Initial:    250 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
		},
		IdleBackoff: Backoff{
			Initial:    time.Millisecond,
			Max:        50 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Applied      int64 // Diffs applied while live
	Stale        int64 // Diffs dropped with u <= cursor
	Invalid      int64 // Diffs dropped as malformed
	Gaps         int64 // Sequence gaps detected
	Syncs        int64 // Successful snapshot syncs
	SyncFailures int64 // Syncs that ended in FAILED
	Drained      int64 // Buffered diffs discarded as covered by a snapshot
	IdleWaits    int64 // Idle backoffs while live
}
