package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/depthbook/internal/config"
	"github.com/rickgao/depthbook/internal/model"
	"github.com/rickgao/depthbook/internal/orderbook"
)

type fakeBook struct {
	state orderbook.State
	top   *model.BookTop
	err   error
}

func (f *fakeBook) Symbol() string         { return "BTCUSDT" }
func (f *fakeBook) State() orderbook.State { return f.state }
func (f *fakeBook) LastUpdateID() uint64 {
	if f.top == nil {
		return 0
	}
	return f.top.LastUpdateID
}
func (f *fakeBook) Err() error { return f.err }
func (f *fakeBook) Top() (model.BookTop, bool) {
	if f.top == nil {
		return model.BookTop{}, false
	}
	return *f.top, true
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		book       *fakeBook
		wantCode   int
		wantStatus string
		wantState  string
	}{
		{
			name:       "live",
			book:       &fakeBook{state: orderbook.StateLive, top: &model.BookTop{LastUpdateID: 1010}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantState:  "LIVE",
		},
		{
			name:       "syncing",
			book:       &fakeBook{state: orderbook.StateSyncing},
			wantCode:   http.StatusOK,
			wantStatus: "syncing",
			wantState:  "SYNCING",
		},
		{
			name:       "failed",
			book:       &fakeBook{state: orderbook.StateFailed, err: errors.New("snapshot stale")},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantState:  "FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHTTPHandler(tt.book, "/metrics", nil, slog.Default())
			rec := get(t, h, "/health")

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.State != tt.wantState {
				t.Errorf("response = %+v, want status %q state %q", resp, tt.wantStatus, tt.wantState)
			}
			if tt.book.err != nil && resp.Error != tt.book.err.Error() {
				t.Errorf("Error = %q, want %q", resp.Error, tt.book.err.Error())
			}
		})
	}
}

func TestBook(t *testing.T) {
	book := &fakeBook{state: orderbook.StateSyncing}
	h := newHTTPHandler(book, "/metrics", nil, slog.Default())

	if rec := get(t, h, "/book"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unsynced /book status = %d, want 503", rec.Code)
	}

	book.state = orderbook.StateLive
	book.top = &model.BookTop{
		Symbol:       "BTCUSDT",
		BestBid:      100.5,
		HasBid:       true,
		LastUpdateID: 1010,
		UpdatedAt:    time.Now(),
		SyncID:       uuid.New(),
	}
	rec := get(t, h, "/book")
	if rec.Code != http.StatusOK {
		t.Fatalf("/book status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"best_bid":"100.5"`) || !strings.Contains(body, `"last_update_id":1010`) {
		t.Errorf("unexpected /book body: %s", body)
	}
	if strings.Contains(body, `"best_ask"`) {
		t.Errorf("empty ask side should be omitted: %s", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	h := newHTTPHandler(&fakeBook{}, "/internal/metrics", metrics, slog.Default())

	if rec := get(t, h, "/internal/metrics"); rec.Body.String() != "ok" {
		t.Errorf("metrics route body = %q, want ok", rec.Body.String())
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := &config.ReplicaConfig{}
	cfg.Market.Symbol = "BTCUSDT"
	cfg.Sync = config.SyncConfig{
		ReadyAttempts:         3,
		PeekAttempts:          4,
		SnapshotAttempts:      5,
		StaleSnapshotAttempts: 6,
		RetryBackoff:          100 * time.Millisecond,
		MaxRetryBackoff:       time.Second,
		IdleBackoff:           time.Millisecond,
		MaxIdleBackoff:        20 * time.Millisecond,
	}

	got := engineConfig(cfg)

	if got.Symbol != "BTCUSDT" || got.ReadyAttempts != 3 || got.PeekAttempts != 4 ||
		got.SnapshotAttempts != 5 || got.StaleSnapshotAttempts != 6 {
		t.Errorf("engineConfig budgets = %+v", got)
	}
	if got.SyncBackoff != (orderbook.Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}) {
		t.Errorf("SyncBackoff = %+v", got.SyncBackoff)
	}
	if got.IdleBackoff.Max != 20*time.Millisecond {
		t.Errorf("IdleBackoff.Max = %v, want 20ms", got.IdleBackoff.Max)
	}
}

func TestStreamConfig(t *testing.T) {
	cfg := &config.ReplicaConfig{}
	cfg.Market.Symbol = "ETHUSDT"
	cfg.API.WSURL = "wss://stream.binance.com:9443/ws"
	cfg.Connection.BufferSize = 64
	cfg.Connection.ReconnectBaseDelay = time.Second

	got := streamConfig(cfg)

	if got.Client.URL != "wss://stream.binance.com:9443/ws/ethusdt@depth@100ms" {
		t.Errorf("URL = %q", got.Client.URL)
	}
	if got.Client.BufferSize != 64 || got.MessageBufferSize != 64 {
		t.Errorf("buffer sizes = (%d, %d), want 64", got.Client.BufferSize, got.MessageBufferSize)
	}
	if got.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", got.ReconnectBaseDelay)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "symbol", "BTCUSDT")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v (%q)", err, out)
	}
	if rec["msg"] != "shown" || rec["symbol"] != "BTCUSDT" {
		t.Errorf("record = %v", rec)
	}
}
