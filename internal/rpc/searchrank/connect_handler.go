package searchrank

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc/connectjson"
	"github.com/kiiskristo/howdoyoufindme/internal/stream"
)

// NewConnectHandler builds the Connect server-stream handler for StreamSearch.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectSearchHandler{runner: runner, metrics: metrics}
	return stream.StreamSearchProcedure, connect.NewServerStreamHandler(
		stream.StreamSearchProcedure,
		h.handle,
		connect.WithCodec(connectjson.Codec{}),
	)
}

type connectSearchHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectSearchHandler) handle(ctx context.Context, req *connect.Request[rpc.SearchRequest], res *connect.ServerStream[rpc.StreamFrame]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := h.runner.Run(ctx, req.Msg.Query)
	if err != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInternal, err)
	}

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.metrics.RecordTransportError("connect", "encode")
			cancel()
			drain(events)
			return connect.NewError(connect.CodeInternal, err)
		}
		if err := res.Send(&rpc.StreamFrame{Data: string(data)}); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			cancel()
			drain(events)
			return err
		}
	}
	return nil
}
