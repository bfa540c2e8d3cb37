package searchrank

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sse"

	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
)

// Runner produces the event stream for one query.
type Runner interface {
	Run(ctx context.Context, query string) (<-chan rpc.Event, error)
}

// Handler serves GET /api/search-rank/stream as a Server-Sent Events stream.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// ServeHTTP writes one unnamed "data:" frame per event and flushes after each.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.metrics.RecordTransportError("sse", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.metrics.IncActiveSessions("sse")
	defer h.metrics.DecActiveSessions("sse")

	events, err := h.runner.Run(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.metrics.RecordTransportError("sse", "runner_error")
		http.Error(w, fmt.Sprintf("runner error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := sse.Encode(w, sse.Event{Data: ev}); err != nil {
			h.metrics.RecordTransportError("sse", "write")
			drain(events)
			return
		}
		flusher.Flush()
	}
}

// drain releases a runner blocked on send after the client went away.
func drain(events <-chan rpc.Event) {
	go func() {
		for range events {
		}
	}()
}
