// Package poller samples the engine's published top of book.
//
// The Sampler:
//   - Reads Engine.Top() every interval (and once immediately on start)
//   - Skips samples whose (SyncID, LastUpdateID) was already delivered
//   - Fans each new sample out to every registered TopHandler
//
// Sampling decouples the engine goroutine from slow sinks such as the
// database writer and the Kafka publisher.
package poller
