package stream

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc/connectjson"
)

// StreamSearchProcedure is the Connect server-stream procedure for one query.
const StreamSearchProcedure = "/searchrank.v1.SearchRankService/StreamSearch"

// ConnectOpener reads the search stream from a Connect server stream.
type ConnectOpener struct {
	client *connect.Client[rpc.SearchRequest, rpc.StreamFrame]
	logger *zap.Logger
}

// NewConnectOpener builds an opener for the backend at baseURL. A nil client
// means an h2c client dialing with dialTimeout.
func NewConnectOpener(baseURL string, client *http.Client, dialTimeout time.Duration, logger *zap.Logger) *ConnectOpener {
	if client == nil {
		client = NewH2CClient(dialTimeout)
	}
	url := strings.TrimRight(baseURL, "/") + StreamSearchProcedure
	return &ConnectOpener{
		client: connect.NewClient[rpc.SearchRequest, rpc.StreamFrame](client, url, connect.WithCodec(connectjson.Codec{})),
		logger: logging.OrNop(logger),
	}
}

// Open calls the server stream on a new goroutine.
func (o *ConnectOpener) Open(ctx context.Context, query string, h Handler) Stream {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		res, err := o.client.CallServerStream(ctx, connect.NewRequest(&rpc.SearchRequest{Query: query}))
		if err != nil {
			if ctx.Err() == nil {
				h.OnError(err)
			}
			return
		}
		defer res.Close()

		for res.Receive() {
			if ctx.Err() != nil {
				return
			}
			h.OnFrame([]byte(res.Msg().Data))
		}
		if ctx.Err() != nil {
			return
		}
		err = res.Err()
		if err == nil {
			err = ErrStreamEnded
		}
		h.OnError(err)
	}()

	return cancelStream{cancel: cancel}
}

// NewH2CClient returns an HTTP/2 cleartext client for Connect streams.
func NewH2CClient(dialTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				d := net.Dialer{Timeout: dialTimeout}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
