package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rickgao/depthbook/internal/model"
	"github.com/rickgao/depthbook/internal/orderbook"
	"github.com/rickgao/depthbook/internal/publisher"
	"github.com/rickgao/depthbook/internal/version"
)

// bookSource is the engine surface served over HTTP.
type bookSource interface {
	Symbol() string
	State() orderbook.State
	LastUpdateID() uint64
	Top() (model.BookTop, bool)
	Err() error
}

type healthResponse struct {
	Status       string `json:"status"`
	Symbol       string `json:"symbol"`
	State        string `json:"state"`
	LastUpdateID uint64 `json:"last_update_id"`
	Version      string `json:"version"`
	Error        string `json:"error,omitempty"`
}

// newHTTPHandler serves /health, /book and the metrics handler at
// metricsPath.
func newHTTPHandler(book bookSource, metricsPath string, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := book.State()
		resp := healthResponse{
			Status:       "healthy",
			Symbol:       book.Symbol(),
			State:        state.String(),
			LastUpdateID: book.LastUpdateID(),
			Version:      version.Version,
		}

		code := http.StatusOK
		switch state {
		case orderbook.StateFailed:
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			if err := book.Err(); err != nil {
				resp.Error = err.Error()
			}
		case orderbook.StateLive:
		default:
			resp.Status = "syncing"
		}

		writeJSON(w, code, resp, logger)
	})

	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		top, ok := book.Top()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "order book not synced",
				"state": book.State().String(),
			}, logger)
			return
		}
		writeJSON(w, http.StatusOK, publisher.NewTopMessage(top), logger)
	})

	if metrics != nil {
		mux.Handle(metricsPath, metrics)
	}

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", "error", err)
	}
}
