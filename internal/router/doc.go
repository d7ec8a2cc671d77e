// Package router turns raw depth-stream frames into typed updates and hands
// them to the order book through a lock-free single-producer/single-consumer
// ring.
//
// The Router goroutine is the ring's only producer; the order book engine is
// its only consumer. Updates that do not fit are dropped and counted, and the
// engine recovers from the resulting sequence gap by resyncing.
package router
