package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/depthbook/internal/model"
)

// TopSource provides the current top of book. *orderbook.Engine implements it.
type TopSource interface {
	Top() (model.BookTop, bool)
}

// TopHandler receives sampled tops.
type TopHandler interface {
	HandleTop(top model.BookTop) error
}

// TopHandlerFunc is a function adapter for TopHandler.
type TopHandlerFunc func(model.BookTop) error

func (f TopHandlerFunc) HandleTop(t model.BookTop) error {
	return f(t)
}

// Config holds sampler configuration.
type Config struct {
	Interval time.Duration // Sample interval (default: 1s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Samples       int64 // Ticks that found a published top
	Delivered     int64 // Samples handed to handlers (new positions only)
	Unchanged     int64 // Samples skipped because the book had not moved
	HandlerErrors int64
}

// Sampler periodically reads a TopSource and forwards new tops.
type Sampler struct {
	cfg      Config
	source   TopSource
	handlers []TopHandler
	logger   *slog.Logger

	// Only touched by the sampling goroutine.
	lastSync uuid.UUID
	lastID   uint64
	seen     bool

	samples       atomic.Int64
	delivered     atomic.Int64
	unchanged     atomic.Int64
	handlerErrors atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Sampler. Nil handlers are ignored.
func New(cfg Config, source TopSource, logger *slog.Logger, handlers ...TopHandler) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}

	hs := make([]TopHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}

	return &Sampler{
		cfg:      cfg,
		source:   source,
		handlers: hs,
		logger:   logger,
	}
}

// Start begins the sampling loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("top sampler started",
		"interval", s.cfg.Interval,
		"handlers", len(s.handlers),
	)

	return nil
}

// Stop gracefully shuts down the sampler.
func (s *Sampler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("top sampler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (s *Sampler) Stats() Stats {
	return Stats{
		Samples:       s.samples.Load(),
		Delivered:     s.delivered.Load(),
		Unchanged:     s.unchanged.Load(),
		HandlerErrors: s.handlerErrors.Load(),
	}
}

// run is the main sampling loop.
func (s *Sampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Sample immediately on start.
	s.sample()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample reads the source once and delivers the top if the book moved.
// It reports whether handlers were called.
func (s *Sampler) sample() bool {
	top, ok := s.source.Top()
	if !ok {
		return false
	}
	s.samples.Add(1)

	if s.seen && top.SyncID == s.lastSync && top.LastUpdateID == s.lastID {
		s.unchanged.Add(1)
		return false
	}
	s.seen = true
	s.lastSync = top.SyncID
	s.lastID = top.LastUpdateID

	for _, h := range s.handlers {
		if err := h.HandleTop(top); err != nil {
			s.handlerErrors.Add(1)
			s.logger.Warn("top handler failed",
				"symbol", top.Symbol,
				"last_update_id", top.LastUpdateID,
				"error", err,
			)
		}
	}
	s.delivered.Add(1)
	return true
}
