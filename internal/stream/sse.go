package stream

import (
	"context"
	"net/http"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/version"
)

// SSEOpener reads the search stream as server-sent events.
// A failed or dropped connection is reported once; it is never retried.
type SSEOpener struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewSSEOpener builds an opener for the backend at baseURL. A nil client means
// a client without an overall timeout, since streams are long-lived.
func NewSSEOpener(baseURL string, client *http.Client, logger *zap.Logger) *SSEOpener {
	if client == nil {
		client = &http.Client{}
	}
	return &SSEOpener{baseURL: baseURL, client: client, logger: logging.OrNop(logger)}
}

// Open subscribes to the query's stream on a new goroutine.
func (o *SSEOpener) Open(ctx context.Context, query string, h Handler) Stream {
	ctx, cancel := context.WithCancel(ctx)

	endpoint := StreamURL(o.baseURL, query)
	client := sse.NewClient(endpoint)
	client.Connection = o.client
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.Headers["User-Agent"] = version.UserAgent()

	go func() {
		o.logger.Debug("opening event stream", zap.String("url", endpoint))
		err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
			if ctx.Err() != nil {
				return
			}
			// only unnamed events and "message" events carry search frames
			if name := string(msg.Event); name != "" && name != "message" {
				o.logger.Debug("skipping named event", zap.String("event", name))
				return
			}
			if len(msg.Data) == 0 {
				return
			}
			h.OnFrame(msg.Data)
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrStreamEnded
		}
		h.OnError(err)
	}()

	return cancelStream{cancel: cancel}
}
