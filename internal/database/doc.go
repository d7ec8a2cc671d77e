// Package database manages the TimescaleDB connection pool used for
// top-of-book telemetry.
//
// The replica never reads its own rows back: the in-memory book is always
// rebuilt from a fresh exchange snapshot. book_tops is an append-only
// history of sampled tops for downstream analysis.
package database
