package config

import (
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL               = "https://api.binance.com"
	DefaultWSURL                 = "wss://stream.binance.com:9443/ws"
	DefaultSnapshotLimit         = 1000
	DefaultAPITimeout            = 10 * time.Second
	DefaultMaxRetries            = 3
	DefaultAPIRetryBackoff       = 500 * time.Millisecond
	DefaultReconnectBaseDelay    = 1 * time.Second
	DefaultReconnectMaxDelay     = 60 * time.Second
	DefaultPingInterval          = 30 * time.Second
	DefaultPingTimeout           = 60 * time.Second
	DefaultWriteTimeout          = 5 * time.Second
	DefaultConnBufferSize        = 10000
	DefaultBufferCapacity        = 1024
	DefaultReadyAttempts         = 60
	DefaultPeekAttempts          = 20
	DefaultSnapshotAttempts      = 5
	DefaultStaleSnapshotAttempts = 10
	DefaultSyncRetryBackoff      = 250 * time.Millisecond
	DefaultSyncMaxRetryBackoff   = 2 * time.Second
	DefaultIdleBackoff           = 1 * time.Millisecond
	DefaultMaxIdleBackoff        = 50 * time.Millisecond
	DefaultDBPort                = 5432
	DefaultDBSSLMode             = "prefer"
	DefaultMaxConns              = 10
	DefaultMinConns              = 2
	DefaultBatchSize             = 500
	DefaultFlushInterval         = 1 * time.Second
	DefaultWriterBufferSize      = 10000
	DefaultPollInterval          = 1 * time.Second
	DefaultKafkaTopic            = "book-tops"
	DefaultKafkaBatchTimeout     = 100 * time.Millisecond
	DefaultMetricsPort           = 9090
	DefaultMetricsPath           = "/metrics"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
)

func (c *ReplicaConfig) applyDefaults() {
	// Market defaults
	c.Market.Symbol = strings.ToUpper(strings.TrimSpace(c.Market.Symbol))
	if c.Market.SnapshotLimit == 0 {
		c.Market.SnapshotLimit = DefaultSnapshotLimit
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultAPIRetryBackoff
	}

	// Connection defaults
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultConnBufferSize
	}

	// Buffer defaults
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = DefaultBufferCapacity
	}

	// Sync defaults
	if c.Sync.ReadyAttempts == 0 {
		c.Sync.ReadyAttempts = DefaultReadyAttempts
	}
	if c.Sync.PeekAttempts == 0 {
		c.Sync.PeekAttempts = DefaultPeekAttempts
	}
	if c.Sync.SnapshotAttempts == 0 {
		c.Sync.SnapshotAttempts = DefaultSnapshotAttempts
	}
	if c.Sync.StaleSnapshotAttempts == 0 {
		c.Sync.StaleSnapshotAttempts = DefaultStaleSnapshotAttempts
	}
	if c.Sync.RetryBackoff == 0 {
		c.Sync.RetryBackoff = DefaultSyncRetryBackoff
	}
	if c.Sync.MaxRetryBackoff == 0 {
		c.Sync.MaxRetryBackoff = DefaultSyncMaxRetryBackoff
	}
	if c.Sync.IdleBackoff == 0 {
		c.Sync.IdleBackoff = DefaultIdleBackoff
	}
	if c.Sync.MaxIdleBackoff == 0 {
		c.Sync.MaxIdleBackoff = DefaultMaxIdleBackoff
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultWriterBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Kafka defaults
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
