// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Engine state, applied/stale/invalid updates, gaps and resyncs
//   - Best bid, best ask and spread after every applied diff
//   - Update latency from websocket receive to book apply
//   - Stream connection state and reconnects
//   - Ring buffer utilization and overflow counts
//   - Sampler, writer and publisher throughput
//   - Database connection pool stats
//
// Counters owned by other components are exported with CounterFunc and
// GaugeFunc, so scrapes read the components' own atomics.
package metrics
