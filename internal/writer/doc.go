// Package writer batches sampled tops of book into TimescaleDB.
//
// TopWriter implements poller.TopHandler. Samples are queued without
// blocking the sampler, flushed when a batch fills or the flush interval
// elapses, and inserted with ON CONFLICT DO NOTHING so a replayed sample is
// counted as a conflict rather than an error.
//
// Prices and quantities are stored as NUMERIC via shopspring/decimal. A side
// that is empty is stored as NULL.
package writer
