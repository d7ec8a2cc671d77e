package metrics

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/depthbook/internal/connection"
	"github.com/rickgao/depthbook/internal/model"
	"github.com/rickgao/depthbook/internal/orderbook"
	"github.com/rickgao/depthbook/internal/poller"
	"github.com/rickgao/depthbook/internal/publisher"
	"github.com/rickgao/depthbook/internal/router"
	"github.com/rickgao/depthbook/internal/writer"
)

const namespace = "depthbook"

// EngineSource is implemented by *orderbook.Engine.
type EngineSource interface {
	Stats() orderbook.Stats
	State() orderbook.State
	LastUpdateID() uint64
}

// RouterSource is implemented by router.Router.
type RouterSource interface {
	Stats() router.RouterStats
}

// StreamSource is implemented by connection.Stream.
type StreamSource interface {
	Stats() connection.StreamStats
}

// SamplerSource is implemented by *poller.Sampler.
type SamplerSource interface {
	Stats() poller.Stats
}

// WriterSource is implemented by *writer.TopWriter.
type WriterSource interface {
	Stats() writer.WriterMetrics
}

// PublisherSource is implemented by *publisher.Publisher.
type PublisherSource interface {
	Stats() publisher.Stats
}

// PoolSource is implemented by *pgxpool.Pool.
type PoolSource interface {
	Stat() *pgxpool.Stat
}

// Metrics owns a registry with every replica collector.
type Metrics struct {
	registry *prometheus.Registry
	labels   prometheus.Labels
	now      func() time.Time

	bestBid       prometheus.Gauge
	bestAsk       prometheus.Gauge
	spread        prometheus.Gauge
	updateLatency prometheus.Histogram
}

// New creates a Metrics registry labelled with symbol. Go runtime and
// process collectors are included.
func New(symbol string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	labels := prometheus.Labels{"symbol": symbol}
	m := &Metrics{
		registry: reg,
		labels:   labels,
		now:      time.Now,
		bestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "book",
			Name:        "best_bid",
			Help:        "Highest bid price after the last applied update.",
			ConstLabels: labels,
		}),
		bestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "book",
			Name:        "best_ask",
			Help:        "Lowest ask price after the last applied update.",
			ConstLabels: labels,
		}),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "book",
			Name:        "spread",
			Help:        "Best ask minus best bid after the last applied update.",
			ConstLabels: labels,
		}),
		updateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "book",
			Name:        "update_latency_seconds",
			Help:        "Time from websocket receive to book apply.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	reg.MustRegister(m.bestBid, m.bestAsk, m.spread, m.updateLatency)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveApplied records top-of-book gauges and latency for one applied
// diff. It has the orderbook.AppliedHandler signature.
func (m *Metrics) ObserveApplied(u model.AppliedUpdate) {
	top := u.Top
	if top.HasBid {
		m.bestBid.Set(top.BestBid)
	}
	if top.HasAsk {
		m.bestAsk.Set(top.BestAsk)
	}
	if top.HasBid && top.HasAsk {
		m.spread.Set(top.Spread)
	}
	if !u.Update.ReceivedAt.IsZero() {
		m.updateLatency.Observe(m.now().Sub(u.Update.ReceivedAt).Seconds())
	}
}

// RegisterEngine exports engine counters and state.
func (m *Metrics) RegisterEngine(src EngineSource) {
	stat := func(f func(orderbook.Stats) int64) func() float64 {
		return func() float64 { return float64(f(src.Stats())) }
	}
	m.mustRegister(
		m.counterFunc("engine", "applied_total", "Diff updates applied to the book.",
			stat(func(s orderbook.Stats) int64 { return s.Applied })),
		m.counterFunc("engine", "stale_total", "Diff updates discarded as already covered.",
			stat(func(s orderbook.Stats) int64 { return s.Stale })),
		m.counterFunc("engine", "invalid_total", "Diff updates dropped as malformed.",
			stat(func(s orderbook.Stats) int64 { return s.Invalid })),
		m.counterFunc("engine", "gaps_total", "Sequence gaps that forced a resync.",
			stat(func(s orderbook.Stats) int64 { return s.Gaps })),
		m.counterFunc("engine", "syncs_total", "Completed snapshot syncs.",
			stat(func(s orderbook.Stats) int64 { return s.Syncs })),
		m.counterFunc("engine", "sync_failures_total", "Syncs that ended in FAILED.",
			stat(func(s orderbook.Stats) int64 { return s.SyncFailures })),
		m.counterFunc("engine", "drained_total", "Buffered updates discarded as covered by a snapshot.",
			stat(func(s orderbook.Stats) int64 { return s.Drained })),
		m.counterFunc("engine", "idle_waits_total", "Idle backoff waits while live.",
			stat(func(s orderbook.Stats) int64 { return s.IdleWaits })),
		m.gaugeFunc("engine", "state", "Sync state: 0 uninitialized, 1 syncing, 2 live, 3 failed.",
			func() float64 { return float64(src.State()) }),
		m.gaugeFunc("engine", "last_update_id", "Final update id of the last applied diff.",
			func() float64 { return float64(src.LastUpdateID()) }),
	)
}

// RegisterRouter exports router counters and ring utilization.
func (m *Metrics) RegisterRouter(src RouterSource) {
	stat := func(f func(router.RouterStats) int64) func() float64 {
		return func() float64 { return float64(f(src.Stats())) }
	}
	m.mustRegister(
		m.counterFunc("router", "messages_total", "Frames received from the stream.",
			stat(func(s router.RouterStats) int64 { return s.MessagesReceived })),
		m.counterFunc("router", "routed_total", "Depth updates pushed to the ring.",
			stat(func(s router.RouterStats) int64 { return s.UpdatesRouted })),
		m.counterFunc("router", "parse_errors_total", "Frames that failed to decode.",
			stat(func(s router.RouterStats) int64 { return s.ParseErrors })),
		m.counterFunc("router", "unknown_total", "Frames that were not depth updates.",
			stat(func(s router.RouterStats) int64 { return s.UnknownMessages })),
		m.counterFunc("router", "other_symbol_total", "Depth updates for another symbol.",
			stat(func(s router.RouterStats) int64 { return s.OtherSymbol })),
		m.counterFunc("router", "buffer_full_total", "Depth updates dropped because the ring was full.",
			stat(func(s router.RouterStats) int64 { return s.BufferFull })),
		m.gaugeFunc("router", "buffer_len", "Updates waiting in the ring.",
			func() float64 { return float64(src.Stats().BufferLen) }),
		m.gaugeFunc("router", "buffer_cap", "Ring capacity in slots.",
			func() float64 { return float64(src.Stats().BufferCap) }),
	)
}

// RegisterStream exports websocket stream counters.
func (m *Metrics) RegisterStream(src StreamSource) {
	stat := func(f func(connection.StreamStats) int64) func() float64 {
		return func() float64 { return float64(f(src.Stats())) }
	}
	m.mustRegister(
		m.gaugeFunc("stream", "connected", "1 when the depth stream is connected.",
			func() float64 {
				if src.Stats().Connected {
					return 1
				}
				return 0
			}),
		m.counterFunc("stream", "connects_total", "Successful stream dials.",
			stat(func(s connection.StreamStats) int64 { return s.Connects })),
		m.counterFunc("stream", "reconnects_total", "Reconnect attempts.",
			stat(func(s connection.StreamStats) int64 { return s.Reconnects })),
		m.counterFunc("stream", "dial_failures_total", "Failed stream dials.",
			stat(func(s connection.StreamStats) int64 { return s.DialFailures })),
		m.counterFunc("stream", "messages_total", "Frames read from the websocket.",
			stat(func(s connection.StreamStats) int64 { return s.MessagesReceived })),
		m.counterFunc("stream", "dropped_total", "Frames dropped because the output channel was full.",
			stat(func(s connection.StreamStats) int64 { return s.MessagesDropped })),
	)
}

// RegisterSampler exports top sampler counters.
func (m *Metrics) RegisterSampler(src SamplerSource) {
	m.mustRegister(
		m.counterFunc("sampler", "delivered_total", "Sampled tops handed to sinks.",
			func() float64 { return float64(src.Stats().Delivered) }),
		m.counterFunc("sampler", "handler_errors_total", "Sink errors while delivering samples.",
			func() float64 { return float64(src.Stats().HandlerErrors) }),
	)
}

// RegisterWriter exports database writer counters.
func (m *Metrics) RegisterWriter(src WriterSource) {
	m.mustRegister(
		m.counterFunc("writer", "inserts_total", "Rows inserted into book_tops.",
			func() float64 { return float64(src.Stats().Inserts) }),
		m.counterFunc("writer", "conflicts_total", "Rows skipped by ON CONFLICT.",
			func() float64 { return float64(src.Stats().Conflicts) }),
		m.counterFunc("writer", "errors_total", "Failed batch inserts.",
			func() float64 { return float64(src.Stats().Errors) }),
		m.counterFunc("writer", "dropped_total", "Samples dropped because the writer queue was full.",
			func() float64 { return float64(src.Stats().Dropped) }),
	)
}

// RegisterPublisher exports Kafka publisher counters.
func (m *Metrics) RegisterPublisher(src PublisherSource) {
	m.mustRegister(
		m.counterFunc("publisher", "published_total", "Messages written to Kafka.",
			func() float64 { return float64(src.Stats().Published) }),
		m.counterFunc("publisher", "errors_total", "Failed Kafka writes.",
			func() float64 { return float64(src.Stats().Errors) }),
	)
}

// RegisterPool exports connection pool gauges.
func (m *Metrics) RegisterPool(src PoolSource) {
	m.mustRegister(
		m.gaugeFunc("db", "total_conns", "Connections in the pool.",
			func() float64 { return float64(src.Stat().TotalConns()) }),
		m.gaugeFunc("db", "acquired_conns", "Connections currently in use.",
			func() float64 { return float64(src.Stat().AcquiredConns()) }),
		m.gaugeFunc("db", "idle_conns", "Idle connections.",
			func() float64 { return float64(src.Stat().IdleConns()) }),
	)
}

func (m *Metrics) counterFunc(subsystem, name, help string, f func() float64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.labels,
	}, f)
}

func (m *Metrics) gaugeFunc(subsystem, name, help string, f func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.labels,
	}, f)
}

func (m *Metrics) mustRegister(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}
