package orderbook

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/depthbook/internal/model"
	"github.com/rickgao/depthbook/internal/router"
)

// Engine maintains the local book for one symbol.
type Engine struct {
	cfg       Config
	buf       *router.Ring[model.DiffUpdate]
	provider  SnapshotProvider
	logger    *slog.Logger
	sleep     Sleeper
	now       Clock
	onApplied AppliedHandler

	// Consumer-owned; touched only by the goroutine running Step.
	bids       *side
	asks       *side
	cursor     uint64
	syncID     uuid.UUID
	pending    model.DiffUpdate
	hasPending bool

	// Published for other goroutines.
	state        atomic.Int32
	lastUpdateID atomic.Uint64
	top          atomic.Pointer[model.BookTop]

	applied      atomic.Int64
	stale        atomic.Int64
	invalid      atomic.Int64
	gaps         atomic.Int64
	syncs        atomic.Int64
	syncFailures atomic.Int64
	drained      atomic.Int64
	idleWaits    atomic.Int64

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errMu  sync.Mutex
	err    error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSleeper replaces the delay used by every poll loop.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithClock replaces the clock used to stamp published tops.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.now = c
		}
	}
}

// WithAppliedHandler registers a callback fired once per applied diff.
func WithAppliedHandler(h AppliedHandler) Option {
	return func(e *Engine) {
		e.onApplied = h
	}
}

// NewEngine creates an Engine reading diffs from buf.
func NewEngine(cfg Config, buf *router.Ring[model.DiffUpdate], provider SnapshotProvider, opts ...Option) (*Engine, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}
	if provider == nil {
		return nil, ErrNilProvider
	}
	if cfg.Symbol == "" {
		return nil, ErrEmptySymbol
	}

	e := &Engine{
		cfg:      cfg,
		buf:      buf,
		provider: provider,
		logger:   slog.Default(),
		sleep:    SleepContext,
		now:      time.Now,
		bids:     newSide(true),
		asks:     newSide(false),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("symbol", cfg.Symbol)

	return e, nil
}

// Start runs Init and KeepSync on a new goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Run(e.ctx); IsFatal(err) {
			e.setErr(err)
			e.logger.Error("order book engine stopped", "error", err)
		}
	}()

	e.logger.Info("order book engine started")
	return nil
}

// Stop cancels the engine goroutine and waits for it to exit.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("stopping order book engine")

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("order book engine stopped",
			"last_update_id", e.LastUpdateID(),
			"applied", e.applied.Load(),
		)
		return nil
	case <-ctx.Done():
		e.logger.Warn("order book engine stop timed out")
		return ctx.Err()
	}
}

// Err returns the error that ended a Start-ed engine, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *Engine) setErr(err error) {
	e.errMu.Lock()
	e.err = err
	e.errMu.Unlock()
}

// Run syncs the book, then keeps it in sync until ctx is done or a resync
// fails.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Init(ctx); err != nil {
		return err
	}
	return e.KeepSync(ctx)
}

// KeepSync runs Step until ctx is done or a fatal error occurs. An empty
// buffer backs off with IdleBackoff; the delay resets on progress.
func (e *Engine) KeepSync(ctx context.Context) error {
	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		progressed, err := e.Step(ctx)
		if err != nil {
			return err
		}
		if progressed {
			idle = 0
			continue
		}

		e.idleWaits.Add(1)
		if err := e.sleep(ctx, e.cfg.IdleBackoff.Delay(idle)); err != nil {
			return err
		}
		idle++
	}
}

// Step performs one unit of work: a full sync when not live, otherwise the
// processing of at most one buffered diff. It reports whether any work was
// done. Gaps are handled internally by moving to SYNCING; the resync runs on
// the next Step.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch e.State() {
	case StateFailed:
		return false, ErrEngineFailed
	case StateUninitialized, StateSyncing:
		if err := e.Init(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	u, ok := e.next()
	if !ok {
		return false, nil
	}
	e.process(u)
	return true, nil
}

// process handles one diff while live.
func (e *Engine) process(u model.DiffUpdate) {
	if err := validateUpdate(u); err != nil {
		e.invalid.Add(1)
		e.logger.Warn("dropping malformed depth update",
			"first_update_id", u.FirstUpdateID,
			"final_update_id", u.FinalUpdateID,
			"error", err,
		)
		return
	}

	if u.FinalUpdateID <= e.cursor {
		e.stale.Add(1)
		e.logger.Debug("dropping stale depth update",
			"final_update_id", u.FinalUpdateID,
			"last_update_id", e.cursor,
		)
		return
	}

	if u.FirstUpdateID > e.cursor+1 {
		gap := &SequenceGapError{
			Expected:      e.cursor + 1,
			FirstUpdateID: u.FirstUpdateID,
			FinalUpdateID: u.FinalUpdateID,
		}
		e.gaps.Add(1)
		e.logger.Warn("sequence gap detected, resyncing",
			"last_update_id", e.cursor,
			"missing", gap.Missing(),
			"error", gap,
		)
		// Keep the gap update at the head so the next snapshot is
		// validated against it.
		e.readmit(u)
		e.setState(StateSyncing)
		return
	}

	e.apply(u)
}

func (e *Engine) apply(u model.DiffUpdate) {
	for _, l := range u.Bids {
		e.bids.set(l.Price, l.Quantity)
	}
	for _, l := range u.Asks {
		e.asks.set(l.Price, l.Quantity)
	}
	e.cursor = u.FinalUpdateID
	e.lastUpdateID.Store(e.cursor)

	e.bids.prune()
	e.asks.prune()

	top := e.publish(u.EventTime)
	e.applied.Add(1)

	if e.onApplied != nil {
		e.onApplied(model.AppliedUpdate{Update: u, Top: top})
	}
}

// validateUpdate rejects diffs that cannot be applied.
func validateUpdate(u model.DiffUpdate) error {
	if u.FirstUpdateID > u.FinalUpdateID {
		return &model.ParseError{
			Field: "U",
			Value: fmt.Sprintf("%d > u=%d", u.FirstUpdateID, u.FinalUpdateID),
		}
	}
	if err := validateLevels("b", u.Bids); err != nil {
		return err
	}
	return validateLevels("a", u.Asks)
}

func validateLevels(field string, levels []model.PriceLevel) error {
	for i, l := range levels {
		if math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price <= 0 {
			return &model.ParseError{Field: fmt.Sprintf("%s[%d].price", field, i), Value: fmt.Sprint(l.Price)}
		}
		if math.IsNaN(l.Quantity) || math.IsInf(l.Quantity, 0) {
			return &model.ParseError{Field: fmt.Sprintf("%s[%d].qty", field, i), Value: fmt.Sprint(l.Quantity)}
		}
	}
	return nil
}

// next takes the head of the logical queue: the re-admitted diff if any,
// otherwise the oldest buffered diff.
func (e *Engine) next() (model.DiffUpdate, bool) {
	if e.hasPending {
		u := e.pending
		e.pending = model.DiffUpdate{}
		e.hasPending = false
		return u, true
	}
	return e.buf.TryPop()
}

// peek returns the head of the logical queue without removing it.
func (e *Engine) peek() (model.DiffUpdate, bool) {
	if e.hasPending {
		return e.pending, true
	}
	return e.buf.TryPeek()
}

// readmit puts u back at the head of the logical queue. The ring has a single
// producer, so the slot lives in the engine.
func (e *Engine) readmit(u model.DiffUpdate) {
	e.pending = u
	e.hasPending = true
}

// publish stores a new top-of-book view and returns it.
func (e *Engine) publish(eventTime int64) model.BookTop {
	top := model.BookTop{
		Symbol:       e.cfg.Symbol,
		BidLevels:    e.bids.depth(),
		AskLevels:    e.asks.depth(),
		LastUpdateID: e.cursor,
		EventTime:    eventTime,
		UpdatedAt:    e.now(),
		SyncID:       e.syncID,
	}
	top.BestBid, top.BestBidQty, top.HasBid = e.bids.best()
	top.BestAsk, top.BestAskQty, top.HasAsk = e.asks.best()
	if top.HasBid && top.HasAsk {
		top.Spread = top.BestAsk - top.BestBid
		top.Mid = (top.BestAsk + top.BestBid) / 2
	}

	e.top.Store(&top)
	return top
}

// BestBid returns the highest bid price. Call only from the engine goroutine
// or an AppliedHandler.
func (e *Engine) BestBid() (float64, bool) {
	p, _, ok := e.bids.best()
	return p, ok
}

// BestAsk returns the lowest ask price. Call only from the engine goroutine
// or an AppliedHandler.
func (e *Engine) BestAsk() (float64, bool) {
	p, _, ok := e.asks.best()
	return p, ok
}

// Spread returns BestAsk - BestBid, false if either side is empty.
func (e *Engine) Spread() (float64, bool) {
	bid, ok := e.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := e.BestAsk()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// Top returns the last published top of book. Safe from any goroutine.
func (e *Engine) Top() (model.BookTop, bool) {
	t := e.top.Load()
	if t == nil {
		return model.BookTop{}, false
	}
	return *t, true
}

// State returns the current sync state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.logger.Debug("order book state change", "from", prev, "to", s)
	}
}

// LastUpdateID returns the cursor: the u of the last applied diff, or L right
// after a sync.
func (e *Engine) LastUpdateID() uint64 {
	return e.lastUpdateID.Load()
}

// Symbol returns the symbol the engine tracks.
func (e *Engine) Symbol() string {
	return e.cfg.Symbol
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Applied:      e.applied.Load(),
		Stale:        e.stale.Load(),
		Invalid:      e.invalid.Load(),
		Gaps:         e.gaps.Load(),
		Syncs:        e.syncs.Load(),
		SyncFailures: e.syncFailures.Load(),
		Drained:      e.drained.Load(),
		IdleWaits:    e.idleWaits.Load(),
	}
}
