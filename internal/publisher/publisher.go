package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rickgao/depthbook/internal/model"
)

var (
	ErrNoBrokers = errors.New("at least one kafka broker is required")
	ErrNoTopic   = errors.New("kafka topic is required")
)

// MessageWriter writes Kafka messages. *kafka.Writer implements it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds publisher configuration.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // Max time a message waits for its batch
	WriteTimeout time.Duration // Per-call timeout for WriteMessages
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Topic:        "book-tops",
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// TopMessage is the wire form of a published top of book.
type TopMessage struct {
	Symbol       string           `json:"symbol"`
	SyncID       uuid.UUID        `json:"sync_id"`
	LastUpdateID uint64           `json:"last_update_id"`
	EventTime    int64            `json:"event_time"`
	PublishedAt  time.Time        `json:"published_at"`
	BestBid      *decimal.Decimal `json:"best_bid,omitempty"`
	BestBidQty   *decimal.Decimal `json:"best_bid_qty,omitempty"`
	BestAsk      *decimal.Decimal `json:"best_ask,omitempty"`
	BestAskQty   *decimal.Decimal `json:"best_ask_qty,omitempty"`
	Spread       *decimal.Decimal `json:"spread,omitempty"`
	Mid          *decimal.Decimal `json:"mid,omitempty"`
	BidLevels    int              `json:"bid_levels"`
	AskLevels    int              `json:"ask_levels"`
}

// Stats contains runtime statistics.
type Stats struct {
	Published int64
	Errors    int64
}

// Publisher sends BookTops to a Kafka topic. It implements poller.TopHandler.
type Publisher struct {
	cfg    Config
	writer MessageWriter
	logger *slog.Logger

	published atomic.Int64
	errors    atomic.Int64
}

// New creates a Publisher backed by a kafka.Writer.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return NewWithWriter(cfg, w, logger), nil
}

// NewWithWriter creates a Publisher using an existing MessageWriter.
func NewWithWriter(cfg Config, w MessageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Publisher{
		cfg:    cfg,
		writer: w,
		logger: logger,
	}
}

// HandleTop publishes one sample.
func (p *Publisher) HandleTop(top model.BookTop) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()
	return p.Publish(ctx, top)
}

// Publish encodes top and writes it keyed by symbol.
func (p *Publisher) Publish(ctx context.Context, top model.BookTop) error {
	value, err := json.Marshal(NewTopMessage(top))
	if err != nil {
		p.errors.Add(1)
		return fmt.Errorf("encode top: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(top.Symbol),
		Value: value,
		Time:  top.UpdatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("publish top %s: %w", top.Symbol, err)
	}

	p.published.Add(1)
	p.logger.Debug("published top",
		"symbol", top.Symbol,
		"last_update_id", top.LastUpdateID,
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Stats returns current statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}

// NewTopMessage converts a BookTop to its wire form. Fields for an
// empty side are omitted.
func NewTopMessage(top model.BookTop) TopMessage {
	msg := TopMessage{
		Symbol:       top.Symbol,
		SyncID:       top.SyncID,
		LastUpdateID: top.LastUpdateID,
		EventTime:    top.EventTime,
		PublishedAt:  top.UpdatedAt.UTC(),
		BidLevels:    top.BidLevels,
		AskLevels:    top.AskLevels,
	}
	if top.HasBid {
		msg.BestBid = dec(top.BestBid)
		msg.BestBidQty = dec(top.BestBidQty)
	}
	if top.HasAsk {
		msg.BestAsk = dec(top.BestAsk)
		msg.BestAskQty = dec(top.BestAskQty)
	}
	if top.HasBid && top.HasAsk {
		msg.Spread = dec(top.Spread)
		msg.Mid = dec(top.Mid)
	}
	return msg
}

func dec(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
