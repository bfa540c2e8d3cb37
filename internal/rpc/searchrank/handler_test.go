package searchrank

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
	"github.com/kiiskristo/howdoyoufindme/internal/search"
	"github.com/kiiskristo/howdoyoufindme/internal/stream"
)

// staticRunner replays a fixed list of events and records the queries it saw.
type staticRunner struct {
	events []rpc.Event
	err    error
	seen   chan string
}

func (r *staticRunner) Run(ctx context.Context, query string) (<-chan rpc.Event, error) {
	if r.seen != nil {
		r.seen <- query
	}
	if r.err != nil {
		return nil, r.err
	}
	out := make(chan rpc.Event)
	go func() {
		defer close(out)
		for _, ev := range r.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func scenario(t *testing.T) []rpc.Event {
	t.Helper()
	kw, err := rpc.TaskEvent(rpc.TaskKeywords, search.KeywordResult{Category: "CRM", Keywords: []string{"crm"}})
	require.NoError(t, err)
	rank, err := rpc.TaskEvent(rpc.TaskRanking, search.RankingResult{
		RankingPosition: "#2",
		ComparisonToLeaders: search.ComparisonToLeaders{
			TopCompetitors: []search.TopCompetitor{{Company: "Salesforce", Rank: 1, MarketShare: "22%"}},
		},
	})
	require.NoError(t, err)
	return []rpc.Event{
		rpc.StatusEvent("Starting"),
		kw,
		rank,
		rpc.CompleteEvent("Done"),
	}
}

func waitDone(t *testing.T, c *search.Controller) search.SessionState {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("search did not finish")
	}
	return c.State()
}

func TestHandlerWritesDataFrames(t *testing.T) {
	h := NewHandler(&staticRunner{events: []rpc.Event{
		rpc.StatusEvent("Starting"),
		rpc.CompleteEvent("Done"),
	}}, nil)

	req := httptest.NewRequest(http.MethodGet, stream.SearchPath+"?query=Acme", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	require.Contains(t, body, `data:{"type":"status","message":"Starting"}`)
	require.Contains(t, body, `data:{"type":"complete","message":"Done"}`)
	require.NotContains(t, body, "event:")
	require.Equal(t, 2, strings.Count(body, "\n\n"))
}

func TestHandlerRejectsNonGet(t *testing.T) {
	metrics := observability.NewMetrics()
	h := NewHandler(&staticRunner{}, metrics)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, stream.SearchPath, nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.TransportErrs.WithLabelValues("sse", "method_not_allowed")))
}

func TestHandlerRunnerError(t *testing.T) {
	metrics := observability.NewMetrics()
	h := NewHandler(&staticRunner{err: errors.New("no models")}, metrics)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, stream.SearchPath+"?query=x", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "no models")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.TransportErrs.WithLabelValues("sse", "runner_error")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSession.WithLabelValues("sse")))
}

func TestSSEEndToEnd(t *testing.T) {
	runner := &staticRunner{events: scenario(t), seen: make(chan string, 1)}
	mux := http.NewServeMux()
	mux.Handle(stream.SearchPath, NewHandler(runner, nil))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := search.NewController(stream.NewSSEOpener(server.URL, nil, nil))
	c.StartSearch("Acme & Co")
	s := waitDone(t, c)

	require.Equal(t, "Acme & Co", <-runner.seen)
	require.False(t, s.Loading)
	require.Empty(t, s.ErrorMessage)
	require.Equal(t, []string{"Starting", "Done"}, s.StatusMessages)
	require.Equal(t, "CRM", s.KeywordResult.Category)
	require.Equal(t, "#2", s.RankingResult.RankingPosition)
	require.Equal(t, search.StepDone, s.Step())
}

func TestSSEEndToEndRunnerFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(stream.SearchPath, NewHandler(&staticRunner{err: errors.New("boom")}, nil))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := search.NewController(stream.NewSSEOpener(server.URL, nil, nil))
	c.StartSearch("Acme")
	s := waitDone(t, c)

	require.False(t, s.Loading)
	require.Equal(t, search.ConnectionErrorMessage, s.ErrorMessage)
}

func newH2CServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open listener in sandbox: %v", err)
	}
	server := httptest.NewUnstartedServer(h2c.NewHandler(handler, &http2.Server{}))
	server.Listener = ln
	server.Start()
	t.Cleanup(server.Close)
	return server
}

func TestConnectEndToEnd(t *testing.T) {
	metrics := observability.NewMetrics()
	path, handler := NewConnectHandler(&staticRunner{events: scenario(t)}, metrics)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := newH2CServer(t, mux)

	c := search.NewController(stream.NewConnectOpener(server.URL, nil, time.Second, nil))
	c.StartSearch("Acme")
	s := waitDone(t, c)

	require.Empty(t, s.ErrorMessage)
	require.Equal(t, []string{"Starting", "Done"}, s.StatusMessages)
	require.Equal(t, "Salesforce", s.RankingResult.ComparisonToLeaders.TopCompetitors[0].Company)
}

func TestConnectEndToEndServerError(t *testing.T) {
	metrics := observability.NewMetrics()
	path, handler := NewConnectHandler(&staticRunner{err: errors.New("boom")}, metrics)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := newH2CServer(t, mux)

	c := search.NewController(stream.NewConnectOpener(server.URL, nil, time.Second, nil))
	c.StartSearch("Acme")
	s := waitDone(t, c)

	require.Equal(t, search.ConnectionErrorMessage, s.ErrorMessage)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.TransportErrs.WithLabelValues("connect", "runner_error")))
}

func TestConnectEndToEndProtocolError(t *testing.T) {
	path, handler := NewConnectHandler(&staticRunner{events: []rpc.Event{
		rpc.StatusEvent("Starting"),
		rpc.ErrorEvent("model quota exceeded"),
	}}, nil)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := newH2CServer(t, mux)

	c := search.NewController(stream.NewConnectOpener(server.URL, nil, time.Second, nil))
	c.StartSearch("Acme")
	s := waitDone(t, c)

	require.Equal(t, "model quota exceeded", s.ErrorMessage)
	require.Equal(t, []string{"Starting"}, s.StatusMessages)
}
