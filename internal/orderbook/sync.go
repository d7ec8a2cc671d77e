package orderbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rickgao/depthbook/internal/model"
)

// Init synchronizes the book from a snapshot and moves the engine to LIVE.
//
// Each step polls with SyncBackoff under its own attempt budget. Running out
// of any budget moves the engine to FAILED and returns a *SyncError.
// Cancelling ctx returns ctx.Err() and leaves the engine in SYNCING.
func (e *Engine) Init(ctx context.Context) error {
	if e.State() == StateFailed {
		return ErrEngineFailed
	}
	e.setState(StateSyncing)

	if err := e.sync(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.syncFailures.Add(1)
		e.setState(StateFailed)
		e.logger.Error("order book sync failed", "error", err)
		return err
	}
	return nil
}

func (e *Engine) sync(ctx context.Context) error {
	if err := e.waitReady(ctx); err != nil {
		return err
	}

	first, err := e.peekFirst(ctx)
	if err != nil {
		return err
	}

	snap, err := e.fetchSnapshot(ctx, first.FirstUpdateID)
	if err != nil {
		return err
	}

	e.rebuild(snap)
	dropped := e.drain(snap.LastUpdateID)

	e.setState(StateLive)
	e.publish(0)
	e.syncs.Add(1)

	e.logger.Info("order book synced",
		"last_update_id", snap.LastUpdateID,
		"first_buffered_update_id", first.FirstUpdateID,
		"drained", dropped,
		"bid_levels", e.bids.depth(),
		"ask_levels", e.asks.depth(),
		"sync_id", e.syncID,
	)
	return nil
}

// waitReady polls until the producer has marked the buffer ready.
func (e *Engine) waitReady(ctx context.Context) error {
	for attempt := 0; attempt < e.cfg.ReadyAttempts; attempt++ {
		if e.hasPending || e.buf.IsReady() {
			return nil
		}
		e.logger.Debug("waiting for update buffer", "attempt", attempt+1)
		if err := e.sleep(ctx, e.cfg.SyncBackoff.Delay(attempt)); err != nil {
			return err
		}
	}
	if e.hasPending || e.buf.IsReady() {
		return nil
	}
	return &SyncError{Step: StepWaitReady, Attempts: e.cfg.ReadyAttempts, Err: ErrBufferUnavailable}
}

// peekFirst returns the head of the logical queue without consuming it.
func (e *Engine) peekFirst(ctx context.Context) (model.DiffUpdate, error) {
	for attempt := 0; attempt < e.cfg.PeekAttempts; attempt++ {
		if u, ok := e.peek(); ok {
			return u, nil
		}
		if err := e.sleep(ctx, e.cfg.SyncBackoff.Delay(attempt)); err != nil {
			return model.DiffUpdate{}, err
		}
	}
	if u, ok := e.peek(); ok {
		return u, nil
	}
	return model.DiffUpdate{}, &SyncError{Step: StepPeekFirst, Attempts: e.cfg.PeekAttempts, Err: ErrBufferUnavailable}
}

// fetchSnapshot fetches until it gets a snapshot with L >= firstUpdateID.
// Transport failures and stale snapshots have separate budgets.
func (e *Engine) fetchSnapshot(ctx context.Context, firstUpdateID uint64) (model.Snapshot, error) {
	failures := 0
	stale := 0

	for {
		snap, err := e.provider.FetchSnapshot(ctx, e.cfg.Symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Snapshot{}, ctxErr
			}
			failures++
			e.logger.Warn("snapshot fetch failed",
				"attempt", failures,
				"max_attempts", e.cfg.SnapshotAttempts,
				"error", err,
			)
			if failures >= e.cfg.SnapshotAttempts {
				return model.Snapshot{}, &SyncError{Step: StepFetchSnapshot, Attempts: failures, Err: err}
			}
			if err := e.sleep(ctx, e.cfg.SyncBackoff.Delay(failures-1)); err != nil {
				return model.Snapshot{}, err
			}
			continue
		}

		if snap.LastUpdateID < firstUpdateID {
			stale++
			e.logger.Info("snapshot predates buffered stream, refetching",
				"last_update_id", snap.LastUpdateID,
				"first_buffered_update_id", firstUpdateID,
				"attempt", stale,
			)
			if stale >= e.cfg.StaleSnapshotAttempts {
				return model.Snapshot{}, &SyncError{
					Step:     StepValidateSnapshot,
					Attempts: stale,
					Err:      fmt.Errorf("L=%d < U0=%d: %w", snap.LastUpdateID, firstUpdateID, ErrSnapshotStale),
				}
			}
			if err := e.sleep(ctx, e.cfg.SyncBackoff.Delay(stale-1)); err != nil {
				return model.Snapshot{}, err
			}
			continue
		}

		return snap, nil
	}
}

// rebuild discards the current book and loads the snapshot.
func (e *Engine) rebuild(snap model.Snapshot) {
	e.bids.reset(snap.Bids)
	e.asks.reset(snap.Asks)
	e.cursor = snap.LastUpdateID
	e.lastUpdateID.Store(e.cursor)
	e.syncID = uuid.New()
}

// drain discards queued diffs already covered by the snapshot and re-admits
// the first one that is not.
func (e *Engine) drain(lastUpdateID uint64) int {
	dropped := 0
	for {
		u, ok := e.next()
		if !ok {
			break
		}
		if u.FinalUpdateID <= lastUpdateID {
			dropped++
			continue
		}
		e.readmit(u)
		break
	}
	e.drained.Add(int64(dropped))
	return dropped
}

// IsFatal reports whether err ended the engine, as opposed to a cancellation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
