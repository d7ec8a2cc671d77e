package main

import (
	"io"
	"log/slog"

	"github.com/rickgao/depthbook/internal/config"
	"github.com/rickgao/depthbook/internal/connection"
	"github.com/rickgao/depthbook/internal/orderbook"
	"github.com/rickgao/depthbook/internal/poller"
	"github.com/rickgao/depthbook/internal/publisher"
	"github.com/rickgao/depthbook/internal/writer"
)

// newLogger builds the process logger from log config.
func newLogger(cfg config.LogConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

func engineConfig(cfg *config.ReplicaConfig) orderbook.Config {
	return orderbook.Config{
		Symbol:                cfg.Market.Symbol,
		ReadyAttempts:         cfg.Sync.ReadyAttempts,
		PeekAttempts:          cfg.Sync.PeekAttempts,
		SnapshotAttempts:      cfg.Sync.SnapshotAttempts,
		StaleSnapshotAttempts: cfg.Sync.StaleSnapshotAttempts,
		SyncBackoff: orderbook.Backoff{
			Initial:    cfg.Sync.RetryBackoff,
			Max:        cfg.Sync.MaxRetryBackoff,
			Multiplier: 2,
		},
		IdleBackoff: orderbook.Backoff{
			Initial:    cfg.Sync.IdleBackoff,
			Max:        cfg.Sync.MaxIdleBackoff,
			Multiplier: 2,
		},
	}
}

func streamConfig(cfg *config.ReplicaConfig) connection.StreamConfig {
	return connection.StreamConfig{
		Client: connection.ClientConfig{
			URL:          cfg.API.StreamURL(cfg.Market.Symbol),
			PingTimeout:  cfg.Connection.PingTimeout,
			PingInterval: cfg.Connection.PingInterval,
			WriteTimeout: cfg.Connection.WriteTimeout,
			DialTimeout:  cfg.API.Timeout,
			BufferSize:   cfg.Connection.BufferSize,
		},
		ReconnectBaseDelay: cfg.Connection.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Connection.ReconnectMaxDelay,
		MessageBufferSize:  cfg.Connection.BufferSize,
	}
}

func samplerConfig(cfg *config.ReplicaConfig) poller.Config {
	return poller.Config{Interval: cfg.Poller.Interval}
}

func writerConfig(cfg *config.ReplicaConfig) writer.WriterConfig {
	return writer.WriterConfig{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		BufferSize:    cfg.Writer.BufferSize,
	}
}

func publisherConfig(cfg *config.ReplicaConfig) publisher.Config {
	return publisher.Config{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		WriteTimeout: cfg.Connection.WriteTimeout,
	}
}
