package config

import (
	"log/slog"
	"strings"
	"time"
)

// ReplicaConfig is the root configuration for an order book replica.
type ReplicaConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Market     MarketConfig     `yaml:"market"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Buffer     BufferConfig     `yaml:"buffer"`
	Sync       SyncConfig       `yaml:"sync"`
	Database   DatabaseConfig   `yaml:"database"`
	Writer     WriterConfig     `yaml:"writer"`
	Poller     PollerConfig     `yaml:"poller"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// InstanceConfig identifies this replica.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// MarketConfig selects the tracked symbol.
type MarketConfig struct {
	Symbol        string `yaml:"symbol"`         // e.g. BTCUSDT
	SnapshotLimit int    `yaml:"snapshot_limit"` // Levels per side in the REST snapshot
}

// APIConfig holds exchange endpoints.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	WSURL        string        `yaml:"ws_url"`  // Base stream URL, or a full stream URL containing "@depth"
	APIKey       string        `yaml:"api_key"` // Optional; sent as X-MBX-APIKEY
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StreamURL returns the diff-depth stream URL for symbol.
func (c APIConfig) StreamURL(symbol string) string {
	if strings.Contains(c.WSURL, "@depth") {
		return c.WSURL
	}
	return strings.TrimRight(c.WSURL, "/") + "/" + strings.ToLower(symbol) + "@depth@100ms"
}

// ConnectionConfig holds WebSocket stream settings.
type ConnectionConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// BufferConfig sizes the ingestion ring between router and engine.
type BufferConfig struct {
	Capacity int `yaml:"capacity"` // Power of two; one slot is always left empty
}

// SyncConfig holds the order book engine's retry budgets and poll delays.
type SyncConfig struct {
	ReadyAttempts         int           `yaml:"ready_attempts"`
	PeekAttempts          int           `yaml:"peek_attempts"`
	SnapshotAttempts      int           `yaml:"snapshot_attempts"`
	StaleSnapshotAttempts int           `yaml:"stale_snapshot_attempts"`
	RetryBackoff          time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff       time.Duration `yaml:"max_retry_backoff"`
	IdleBackoff           time.Duration `yaml:"idle_backoff"`
	MaxIdleBackoff        time.Duration `yaml:"max_idle_backoff"`
}

// DatabaseConfig holds the TimescaleDB connection for top-of-book samples.
type DatabaseConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PollerConfig holds top-of-book sampler settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// KafkaConfig holds the top-of-book publisher settings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SlogLevel maps Level to a slog.Level. Unknown values map to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
