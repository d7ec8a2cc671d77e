package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/depthbook/internal/api"
	"github.com/rickgao/depthbook/internal/config"
	"github.com/rickgao/depthbook/internal/connection"
	"github.com/rickgao/depthbook/internal/database"
	"github.com/rickgao/depthbook/internal/metrics"
	"github.com/rickgao/depthbook/internal/model"
	"github.com/rickgao/depthbook/internal/orderbook"
	"github.com/rickgao/depthbook/internal/poller"
	"github.com/rickgao/depthbook/internal/publisher"
	"github.com/rickgao/depthbook/internal/router"
	"github.com/rickgao/depthbook/internal/version"
	"github.com/rickgao/depthbook/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/replica.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	// Set up structured logging
	logger := newLogger(cfg.Log, os.Stdout).With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting replica",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"symbol", cfg.Market.Symbol,
	)

	// Shut down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("replica exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("replica stopped")
}

// lifecycle is a component with the Start/Stop idiom.
type lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func run(ctx context.Context, cfg *config.ReplicaConfig, logger *slog.Logger) error {
	m := metrics.New(cfg.Market.Symbol)

	// Shared ingestion ring: the router produces, the engine consumes.
	ring, err := router.NewRing[model.DiffUpdate](cfg.Buffer.Capacity)
	if err != nil {
		return fmt.Errorf("create ring: %w", err)
	}

	stream := connection.NewStream(streamConfig(cfg), logger.With("component", "stream"))
	rtr, err := router.NewRouter(
		router.RouterConfig{Symbol: cfg.Market.Symbol},
		stream.Messages(),
		ring,
		logger.With("component", "router"),
	)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.APIKey,
		api.WithLogger(logger.With("component", "api")),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithSnapshotLimit(cfg.Market.SnapshotLimit),
	)

	engine, err := orderbook.NewEngine(engineConfig(cfg), ring, apiClient,
		orderbook.WithLogger(logger.With("component", "engine")),
		orderbook.WithAppliedHandler(m.ObserveApplied),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	m.RegisterStream(stream)
	m.RegisterRouter(rtr)
	m.RegisterEngine(engine)

	// Optional sinks fed by the sampler.
	var handlers []poller.TopHandler
	var sinks []lifecycle

	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Timescale)
		if err != nil {
			return fmt.Errorf("connect timescale: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("database connected")

		w := writer.NewTopWriter(writerConfig(cfg), pool, logger.With("component", "writer"))
		handlers = append(handlers, w)
		sinks = append(sinks, w)
		m.RegisterWriter(w)
		m.RegisterPool(pool)
	}

	if cfg.Kafka.Enabled {
		pub, err := publisher.New(publisherConfig(cfg), logger.With("component", "publisher"))
		if err != nil {
			return fmt.Errorf("create publisher: %w", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close publisher failed", "error", err)
			}
		}()
		handlers = append(handlers, pub)
		m.RegisterPublisher(pub)
		logger.Info("kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	sampler := poller.New(samplerConfig(cfg), engine, logger.With("component", "sampler"), handlers...)
	m.RegisterSampler(sampler)

	// Start order: sinks, the ingestion path, the engine, then the sampler.
	// A failed engine keeps running the HTTP server so /health reports
	// FAILED until the orchestrator restarts the replica.
	components := append(append([]lifecycle{}, sinks...), stream, rtr, engine, sampler)
	started := make([]lifecycle, 0, len(components))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(stopCtx); err != nil {
				logger.Warn("component stop failed", "error", err)
			}
		}
	}()

	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start component: %w", err)
		}
		started = append(started, c)
	}

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(engine, cfg.Metrics.Path, m.Handler(), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting http server",
			"port", cfg.Metrics.Port,
			"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
