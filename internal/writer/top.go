package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rickgao/depthbook/internal/model"
)

// TopWriter consumes sampled BookTops and writes them to the book_tops table.
type TopWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input chan model.BookTop

	// Database
	db BatchSender

	// Batching
	batch   []topRow
	batchMu sync.Mutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewTopWriter creates a new TopWriter.
func NewTopWriter(cfg WriterConfig, db BatchSender, logger *slog.Logger) *TopWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &TopWriter{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan model.BookTop, cfg.BufferSize),
		batch:  make([]topRow, 0, cfg.BatchSize),
	}
}

// HandleTop queues a sample without blocking. It implements poller.TopHandler.
func (w *TopWriter) HandleTop(top model.BookTop) error {
	select {
	case w.input <- top:
		return nil
	default:
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
		return ErrQueueFull
	}
}

// Start begins consuming samples and writing to the database.
func (w *TopWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("top writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer, then drains the queue and flushes what is left
// using ctx.
func (w *TopWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping top writer")

	if w.cancel != nil {
		w.cancel()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("top writer stop timed out")
		return ctx.Err()
	}

drain:
	for {
		select {
		case top := <-w.input:
			w.add(top)
		default:
			break drain
		}
	}

	w.flush(ctx)
	w.logger.Info("top writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *TopWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads samples and accumulates batches.
func (w *TopWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case top := <-w.input:
			if w.add(top) {
				w.flush(w.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *TopWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// add transforms and appends a sample, reporting whether the batch is full.
func (w *TopWriter) add(top model.BookTop) bool {
	row := transform(top)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a BookTop to a topRow.
func transform(top model.BookTop) topRow {
	row := topRow{
		Symbol:       top.Symbol,
		SyncID:       top.SyncID,
		LastUpdateID: int64(top.LastUpdateID),
		EventTime:    top.EventTime,
		SampledAt:    top.UpdatedAt.UTC(),
		BidLevels:    top.BidLevels,
		AskLevels:    top.AskLevels,
	}
	if top.HasBid {
		row.BestBid = nullDecimal(top.BestBid)
		row.BestBidQty = nullDecimal(top.BestBidQty)
	}
	if top.HasAsk {
		row.BestAsk = nullDecimal(top.BestAsk)
		row.BestAskQty = nullDecimal(top.BestAskQty)
	}
	if top.HasBid && top.HasAsk {
		row.Spread = nullDecimal(top.Spread)
		row.Mid = nullDecimal(top.Mid)
	}
	return row
}

func nullDecimal(f float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(f), Valid: true}
}

// flush writes the current batch to the database.
func (w *TopWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]topRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed book tops",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TopWriter) batchInsert(ctx context.Context, rows []topRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertTopSQL,
			r.Symbol, r.SyncID, r.LastUpdateID, r.EventTime, r.SampledAt,
			r.BestBid, r.BestBidQty, r.BestAsk, r.BestAskQty, r.Spread, r.Mid,
			r.BidLevels, r.AskLevels)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
