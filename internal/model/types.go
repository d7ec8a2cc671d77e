package model

import (
	"time"

	"github.com/google/uuid"
)

// PriceLevel is an aggregate quantity at one price on one side of the book.
// A quantity <= 0 in an update means the level is removed.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DiffUpdate is one incremental depth message from the stream.
type DiffUpdate struct {
	EventTime     int64  // Exchange event time (ms since epoch)
	Symbol        string // e.g. "BTCUSDT"
	FirstUpdateID uint64 // U
	FinalUpdateID uint64 // u
	Bids          []PriceLevel
	Asks          []PriceLevel
	ReceivedAt    time.Time // Local receive time of the websocket frame
}

// Snapshot is a full point-in-time book used to bootstrap or reset the replica.
type Snapshot struct {
	Symbol       string
	LastUpdateID uint64 // L
	Bids         []PriceLevel
	Asks         []PriceLevel
	FetchedAt    time.Time
}

// BookTop is an immutable view of the top of the book after a sync or an
// applied update.
type BookTop struct {
	Symbol       string
	BestBid      float64
	BestBidQty   float64
	BestAsk      float64
	BestAskQty   float64
	Spread       float64 // BestAsk - BestBid, 0 unless both sides present
	Mid          float64 // (BestBid + BestAsk) / 2, 0 unless both sides present
	HasBid       bool
	HasAsk       bool
	BidLevels    int
	AskLevels    int
	LastUpdateID uint64
	EventTime    int64     // Event time of the last applied update (0 right after sync)
	UpdatedAt    time.Time // Local time the view was published
	SyncID       uuid.UUID // Identifies the snapshot epoch this view belongs to
}

// Crossed reports whether the best bid is at or above the best ask.
func (t BookTop) Crossed() bool {
	return t.HasBid && t.HasAsk && t.BestBid >= t.BestAsk
}

// AppliedUpdate is delivered once per diff that was applied to the book.
type AppliedUpdate struct {
	Update DiffUpdate
	Top    BookTop
}
