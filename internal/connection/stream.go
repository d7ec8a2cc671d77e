package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Stream keeps a single depth-stream connection alive and forwards its
// frames to one output channel.
//
// On disconnect the Stream redials with exponential backoff between
// ReconnectBaseDelay and ReconnectMaxDelay. Frames lost while disconnected
// show up downstream as a sequence gap.
type Stream interface {
	// Start dials the stream and begins forwarding frames.
	Start(ctx context.Context) error

	// Stop closes the connection and waits for the forwarding goroutine.
	Stop(ctx context.Context) error

	// Messages returns the output channel. It is never closed.
	Messages() <-chan TimestampedMessage

	// Stats returns current stream statistics.
	Stats() StreamStats
}

type stream struct {
	cfg    StreamConfig
	logger *slog.Logger

	// newClient is replaced in tests.
	newClient func(ClientConfig, *slog.Logger) Client

	out chan TimestampedMessage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connected    atomic.Bool
	connects     atomic.Int64
	reconnects   atomic.Int64
	dialFailures atomic.Int64
	received     atomic.Int64
	dropped      atomic.Int64
}

// NewStream creates a reconnecting Stream.
func NewStream(cfg StreamConfig, logger *slog.Logger) Stream {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = DefaultStreamConfig().MessageBufferSize
	}

	return &stream{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		out:       make(chan TimestampedMessage, cfg.MessageBufferSize),
	}
}

// Start begins the connect/forward/reconnect loop. The first dial happens on
// the loop goroutine so a temporarily unreachable endpoint does not fail
// start-up.
func (s *stream) Start(ctx context.Context) error {
	if s.cfg.Client.URL == "" {
		return ErrEmptyURL
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("depth stream started", "url", s.cfg.Client.URL)
	return nil
}

// Stop gracefully shuts down the stream.
func (s *stream) Stop(ctx context.Context) error {
	s.logger.Info("stopping depth stream")

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
		s.logger.Info("depth stream stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("depth stream stop timed out")
		return ctx.Err()
	}
}

// Messages returns the output channel.
func (s *stream) Messages() <-chan TimestampedMessage {
	return s.out
}

// Stats returns current statistics.
func (s *stream) Stats() StreamStats {
	return StreamStats{
		Connected:        s.connected.Load(),
		Connects:         s.connects.Load(),
		Reconnects:       s.reconnects.Load(),
		DialFailures:     s.dialFailures.Load(),
		MessagesReceived: s.received.Load(),
		MessagesDropped:  s.dropped.Load(),
	}
}

func (s *stream) run() {
	defer s.wg.Done()

	wait := s.cfg.ReconnectBaseDelay
	first := true

	for {
		if s.ctx.Err() != nil {
			return
		}

		if !first {
			if !s.sleep(wait) {
				return
			}
			s.reconnects.Add(1)
			s.logger.Info("attempting reconnection", "wait", wait)
		}
		first = false

		c := s.newClient(s.cfg.Client, s.logger.With("url", s.cfg.Client.URL))
		if err := c.Connect(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.dialFailures.Add(1)
			s.logger.Warn("depth stream connect failed", "error", err)
			wait = s.nextWait(wait)
			continue
		}

		s.connects.Add(1)
		s.connected.Store(true)
		s.logger.Info("depth stream connected")
		wait = s.cfg.ReconnectBaseDelay

		err := s.forward(c)
		s.connected.Store(false)
		c.Close()

		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("depth stream disconnected", "error", err)
	}
}

// forward copies frames from c to the output channel until the connection
// reports an error or the stream is stopped.
func (s *stream) forward(c Client) error {
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case err := <-c.Errors():
			return err
		case msg := <-c.Messages():
			s.received.Add(1)
			select {
			case s.out <- msg:
			default:
				s.dropped.Add(1)
				s.logger.Warn("stream output full, dropping message")
			}
		}
	}
}

func (s *stream) nextWait(wait time.Duration) time.Duration {
	if wait <= 0 {
		wait = time.Millisecond
	}
	wait *= 2
	if s.cfg.ReconnectMaxDelay > 0 && wait > s.cfg.ReconnectMaxDelay {
		wait = s.cfg.ReconnectMaxDelay
	}
	return wait
}

func (s *stream) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
