package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rickgao/depthbook/internal/connection"
	"github.com/rickgao/depthbook/internal/model"
)

// ErrNilOutput is returned when the Router is built without an output ring.
var ErrNilOutput = errors.New("router output ring is required")

// Router parses raw WebSocket frames and pushes depth updates into the ring.
type Router interface {
	// Start begins routing messages from the input channel to the ring.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from the depth stream
	input <-chan connection.TimestampedMessage

	// Output to the order book engine; this goroutine is its only producer.
	out *Ring[model.DiffUpdate]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	received    atomic.Int64
	routed      atomic.Int64
	parseErrors atomic.Int64
	unknown     atomic.Int64
	otherSymbol atomic.Int64
	bufferFull  atomic.Int64
}

// NewRouter creates a new depth Router writing into out.
func NewRouter(cfg RouterConfig, input <-chan connection.TimestampedMessage, out *Ring[model.DiffUpdate], logger *slog.Logger) (Router, error) {
	if out == nil {
		return nil, ErrNilOutput
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:    cfg,
		logger: logger,
		input:  input,
		out:    out,
	}, nil
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("depth router started",
		"symbol", r.cfg.Symbol,
		"buffer_capacity", r.out.Cap(),
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping depth router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("depth router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("depth router stop timed out")
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	return RouterStats{
		MessagesReceived: r.received.Load(),
		UpdatesRouted:    r.routed.Load(),
		ParseErrors:      r.parseErrors.Load(),
		UnknownMessages:  r.unknown.Load(),
		OtherSymbol:      r.otherSymbol.Load(),
		BufferFull:       r.bufferFull.Load(),
		BufferLen:        r.out.Len(),
		BufferCap:        r.out.Cap(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses and forwards a single frame.
func (r *router) route(raw connection.TimestampedMessage) {
	r.received.Add(1)

	update, ok, err := decodeDepthUpdate(raw.Data)
	if err != nil {
		r.logger.Warn("failed to parse depth update", "error", err)
		r.parseErrors.Add(1)
		return
	}
	if !ok {
		r.unknown.Add(1)
		return
	}

	if !strings.EqualFold(update.Symbol, r.cfg.Symbol) {
		r.logger.Debug("skipping update for other symbol", "symbol", update.Symbol)
		r.otherSymbol.Add(1)
		return
	}

	update.ReceivedAt = raw.ReceivedAt

	if !r.out.TryPush(update) {
		r.bufferFull.Add(1)
		r.logger.Warn("ingestion buffer full, dropping update",
			"first_update_id", update.FirstUpdateID,
			"final_update_id", update.FinalUpdateID,
		)
		return
	}
	r.routed.Add(1)

	if !r.out.IsReady() {
		r.out.SetReady(true)
		r.logger.Info("depth stream ready",
			"symbol", update.Symbol,
			"first_update_id", update.FirstUpdateID,
		)
	}
}

// decodeDepthUpdate decodes a raw or combined-stream frame. ok is false for
// frames that are not depth updates (command replies, other events).
func decodeDepthUpdate(data []byte) (model.DiffUpdate, bool, error) {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.DiffUpdate{}, false, fmt.Errorf("unmarshal envelope: %w", err)
	}

	payload := data
	if len(env.Data) > 0 {
		payload = env.Data
	} else if env.Event != eventDepthUpdate {
		return model.DiffUpdate{}, false, nil
	}

	var wire depthUpdateWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return model.DiffUpdate{}, false, fmt.Errorf("unmarshal depth update: %w", err)
	}
	if wire.Event != eventDepthUpdate {
		return model.DiffUpdate{}, false, nil
	}

	bids, err := model.ParseLevels("b", wire.Bids)
	if err != nil {
		return model.DiffUpdate{}, false, err
	}
	asks, err := model.ParseLevels("a", wire.Asks)
	if err != nil {
		return model.DiffUpdate{}, false, err
	}

	return model.DiffUpdate{
		EventTime:     wire.EventTime,
		Symbol:        wire.Symbol,
		FirstUpdateID: wire.FirstUpdateID,
		FinalUpdateID: wire.FinalUpdateID,
		Bids:          bids,
		Asks:          asks,
	}, true, nil
}
