package router

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidCapacity is returned when a ring capacity is not a power of two >= 2.
var ErrInvalidCapacity = errors.New("ring capacity must be a power of two >= 2")

// cacheLinePad keeps the producer and consumer cursors on separate cache lines.
type cacheLinePad [56]byte

// Ring is a fixed-capacity single-producer/single-consumer ring buffer.
//
// One slot is always left empty so that read == write means empty and
// next(write) == read means full; usable capacity is Cap()-1. TryPush must only
// be called from the producer goroutine and TryPop/TryPeek only from the
// consumer goroutine. The buffer never blocks and never grows.
type Ring[T any] struct {
	read atomic.Uint64 // consumer cursor, in [0, capacity)
	_    cacheLinePad
	write atomic.Uint64 // producer cursor, in [0, capacity)
	_     cacheLinePad
	ready atomic.Bool
	_     cacheLinePad

	buf  []T
	mask uint64
}

// NewRing creates a ring with the given capacity.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity < 2 || capacity&(capacity-1) != 0 {
		return nil, ErrInvalidCapacity
	}
	return &Ring[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// TryPush appends item. Returns false without modifying the ring if it is full.
func (r *Ring[T]) TryPush(item T) bool {
	// Only the producer stores write, so this load needs no ordering.
	w := r.write.Load()
	next := (w + 1) & r.mask

	// Observe the consumer's latest release of read before reusing a slot.
	if next == r.read.Load() {
		return false
	}

	r.buf[w] = item
	// Publishing write makes the slot write visible to the consumer.
	r.write.Store(next)
	return true
}

// TryPop removes and returns the oldest item. Returns false if the ring is empty.
func (r *Ring[T]) TryPop() (T, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		var zero T
		return zero, false
	}

	item := r.buf[rd]
	var zero T
	r.buf[rd] = zero // Clear reference for GC
	r.read.Store((rd + 1) & r.mask)
	return item, true
}

// TryPeek returns the oldest item without removing it.
func (r *Ring[T]) TryPeek() (T, bool) {
	rd := r.read.Load()
	if rd == r.write.Load() {
		var zero T
		return zero, false
	}
	return r.buf[rd], true
}

// Len returns the number of buffered items. The value is a snapshot when
// called concurrently with the producer or consumer.
func (r *Ring[T]) Len() int {
	w := r.write.Load()
	rd := r.read.Load()
	return int((w - rd) & r.mask)
}

// IsEmpty reports whether the ring holds no items.
func (r *Ring[T]) IsEmpty() bool {
	return r.Len() == 0
}

// Cap returns the ring capacity (one more than the number of usable slots).
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// SetReady is called by the producer once the first message has been observed.
func (r *Ring[T]) SetReady(ready bool) {
	r.ready.Store(ready)
}

// IsReady distinguishes a stream that has not started from one that is
// temporarily empty.
func (r *Ring[T]) IsReady() bool {
	return r.ready.Load()
}
