package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrEmptyURL        = errors.New("websocket url is required")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Stream URL (e.g., wss://stream.binance.com:9443/ws/btcusdt@depth@100ms)
	PingTimeout  time.Duration // Max time without ping/pong before considering connection stale
	PingInterval time.Duration // How often the client sends its own ping
	WriteTimeout time.Duration // Write deadline for sends and control frames
	DialTimeout  time.Duration // Handshake timeout
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		DialTimeout:  10 * time.Second,
		BufferSize:   10000,
	}
}

// StreamConfig configures the reconnecting depth Stream.
type StreamConfig struct {
	Client             ClientConfig
	ReconnectBaseDelay time.Duration // First wait after a disconnect
	ReconnectMaxDelay  time.Duration // Cap on the exponential backoff
	MessageBufferSize  int           // Buffer size for the output channel
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Client:             DefaultClientConfig(),
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		MessageBufferSize:  10000,
	}
}

// StreamStats is a point-in-time view of Stream counters.
type StreamStats struct {
	Connected        bool
	Connects         int64
	Reconnects       int64
	DialFailures     int64
	MessagesReceived int64
	MessagesDropped  int64
}
