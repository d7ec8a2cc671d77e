package writer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrQueueFull is returned by HandleTop when the input queue is full.
var ErrQueueFull = errors.New("writer queue full")

// BatchSender sends a pgx batch. *pgxpool.Pool implements it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching configuration.
type WriterConfig struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits in a partial batch
	BufferSize    int           // Input queue capacity
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics contains runtime statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // Samples rejected because the queue was full
}

// topRow is one book_tops row.
type topRow struct {
	Symbol       string
	SyncID       uuid.UUID
	LastUpdateID int64
	EventTime    int64
	SampledAt    time.Time
	BestBid      decimal.NullDecimal
	BestBidQty   decimal.NullDecimal
	BestAsk      decimal.NullDecimal
	BestAskQty   decimal.NullDecimal
	Spread       decimal.NullDecimal
	Mid          decimal.NullDecimal
	BidLevels    int
	AskLevels    int
}

const insertTopSQL = `
	INSERT INTO book_tops (symbol, sync_id, last_update_id, event_time, sampled_at,
		best_bid, best_bid_qty, best_ask, best_ask_qty, spread, mid, bid_levels, ask_levels)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (symbol, sync_id, last_update_id) DO NOTHING
`
