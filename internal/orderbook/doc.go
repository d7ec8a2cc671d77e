// Package orderbook maintains a local replica of one symbol's order book.
//
// The Engine bootstraps from a REST depth snapshot and then applies the
// sequenced diff stream it reads from a router.Ring:
//
//	UNINITIALIZED -> SYNCING -> LIVE
//	LIVE -> SYNCING -> LIVE   (sequence gap)
//	any sync step out of retries -> FAILED (terminal)
//
// Sync follows the exchange rules for a diff-depth stream: peek the first
// buffered update for U0, fetch a snapshot with lastUpdateId L >= U0, discard
// buffered updates with u <= L, then apply the rest in order. An update whose
// U skips past cursor+1 is a gap and forces a fresh snapshot.
//
// All book state is owned by the goroutine that calls Step (directly or via
// KeepSync/Run/Start). Other goroutines read the published Top, State,
// LastUpdateID and Stats, which are atomics.
package orderbook
