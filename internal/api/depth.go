package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/depthbook/internal/model"
)

// ErrEmptySymbol is returned when a snapshot is requested without a symbol.
var ErrEmptySymbol = errors.New("symbol is required")

// GetDepthSnapshot fetches the raw depth snapshot for symbol.
func (c *Client) GetDepthSnapshot(ctx context.Context, symbol string, limit int) (*DepthSnapshotResponse, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	query := url.Values{}
	query.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp DepthSnapshotResponse
	if err := c.get(ctx, "/api/v3/depth", query, &resp); err != nil {
		return nil, fmt.Errorf("get depth %s: %w", symbol, err)
	}

	return &resp, nil
}

// FetchSnapshot fetches and decodes the depth snapshot for symbol using the
// configured snapshot limit.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (model.Snapshot, error) {
	resp, err := c.GetDepthSnapshot(ctx, symbol, c.snapshotLimit)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap, err := ToSnapshot(symbol, resp, time.Now())
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("decode depth %s: %w", symbol, err)
	}

	c.logger.Debug("fetched depth snapshot",
		"symbol", snap.Symbol,
		"last_update_id", snap.LastUpdateID,
		"bids", len(snap.Bids),
		"asks", len(snap.Asks),
	)

	return snap, nil
}
