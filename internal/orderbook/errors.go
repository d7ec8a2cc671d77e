package orderbook

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrNilBuffer         = errors.New("orderbook: update buffer is required")
	ErrNilProvider       = errors.New("orderbook: snapshot provider is required")
	ErrEmptySymbol       = errors.New("orderbook: symbol is required")
	ErrBufferUnavailable = errors.New("orderbook: update buffer unavailable")
	ErrSnapshotStale     = errors.New("orderbook: snapshot older than first buffered update")
	ErrEngineFailed      = errors.New("orderbook: engine failed")
)

// Sync steps reported in SyncError.
const (
	StepWaitReady        = "wait_ready"
	StepPeekFirst        = "peek_first_update"
	StepFetchSnapshot    = "fetch_snapshot"
	StepValidateSnapshot = "validate_snapshot"
)

// SyncError is returned when a sync step exhausts its retry budget. It moves
// the engine to FAILED.
type SyncError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed after %d attempts: %v", e.Step, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// SequenceGapError describes a diff whose first update id skips past the
// cursor. It is logged and triggers a resync; callers never receive it.
type SequenceGapError struct {
	Expected      uint64 // cursor + 1
	FirstUpdateID uint64
	FinalUpdateID uint64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap: expected first update id <= %d, got U=%d u=%d",
		e.Expected, e.FirstUpdateID, e.FinalUpdateID)
}

// Missing returns how many update ids were skipped.
func (e *SequenceGapError) Missing() uint64 {
	return e.FirstUpdateID - e.Expected
}
