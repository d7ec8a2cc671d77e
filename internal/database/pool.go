package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/depthbook/internal/config"
)

// Execer is the subset of *pgxpool.Pool used for schema setup.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the book_tops table. Rows are unique per (symbol, sync_id,
// last_update_id) so replayed samples are absorbed by ON CONFLICT DO NOTHING.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS book_tops (
		symbol         TEXT             NOT NULL,
		sync_id        UUID             NOT NULL,
		last_update_id BIGINT           NOT NULL,
		event_time     BIGINT           NOT NULL,
		sampled_at     TIMESTAMPTZ      NOT NULL,
		best_bid       NUMERIC,
		best_bid_qty   NUMERIC,
		best_ask       NUMERIC,
		best_ask_qty   NUMERIC,
		spread         NUMERIC,
		mid            NUMERIC,
		bid_levels     INTEGER          NOT NULL,
		ask_levels     INTEGER          NOT NULL,
		PRIMARY KEY (symbol, sync_id, last_update_id)
	)`,
	`CREATE INDEX IF NOT EXISTS book_tops_symbol_sampled_at_idx ON book_tops (symbol, sampled_at DESC)`,
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema runs every Schema statement in order.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
