package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to the exchange stream.
//
// A Client is single-use: once its connection fails or it is closed, create a
// new one. Stream does this on every reconnect.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of raw frames, each stamped with its local
	// receive time.
	Messages() <-chan TimestampedMessage

	// Errors receives at most one error: the one that ended the connection.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

const (
	stateIdle int32 = iota
	stateConnected
	stateDisconnected
	stateClosed
)

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
	failOnce  sync.Once

	// Serializes data frames and control frames written outside the read loop.
	writeMu sync.Mutex
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect dials the stream and starts the read and keepalive goroutines.
//
// Inbound traffic of any kind (data, ping or pong) extends the read deadline
// by PingTimeout, so a silent connection surfaces as ErrStaleConnection.
func (c *client) Connect(ctx context.Context) error {
	switch c.state.Load() {
	case stateClosed, stateDisconnected:
		return ErrAlreadyClosed
	case stateConnected:
		return nil
	}
	if c.cfg.URL == "" {
		return ErrEmptyURL
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.conn = conn

	conn.SetPingHandler(func(data string) error {
		c.touch()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
	c.touch()

	if !c.state.CompareAndSwap(stateIdle, stateConnected) {
		// Closed while dialing.
		conn.Close()
		return ErrAlreadyClosed
	}

	go c.readLoop()
	go c.keepalive()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)
	return nil
}

// touch extends the read deadline after inbound traffic.
func (c *client) touch() {
	if c.cfg.PingTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
	}
}

// Close sends a close frame and releases the connection. It is idempotent.
func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		prev := c.state.Swap(stateClosed)
		close(c.done)

		if prev == stateIdle || c.conn == nil {
			return
		}

		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Send writes a text frame.
func (c *client) Send(data []byte) error {
	if c.state.Load() != stateConnected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	return c.state.Load() == stateConnected
}

// fail records the error that ended the connection, unless Close got there
// first.
func (c *client) fail(err error) {
	c.failOnce.Do(func() {
		if !c.state.CompareAndSwap(stateConnected, stateDisconnected) {
			return
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			c.logger.Warn("no traffic on websocket, connection stale", "timeout", c.cfg.PingTimeout)
			err = ErrStaleConnection
		}
		c.errors <- err
	})
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(err)
			return
		}
		c.touch()

		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message")
		}
	}
}

// keepalive pings the server every PingInterval so idle streams still see
// pongs.
func (c *client) keepalive() {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultClientConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.state.Load() != stateConnected {
				return
			}
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
