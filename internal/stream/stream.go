// Package stream provides ordered event sources for one search query.
//
// An Opener returns immediately and never calls the Handler synchronously.
// Frames are delivered from a single goroutine per stream, in arrival order.
// Once Close has been called, or the Open context is done, no further error is
// reported; a frame already in flight may still arrive and must be tolerated
// by the Handler.
package stream

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// SearchPath is the server endpoint streaming one search-rank analysis.
const SearchPath = "/api/search-rank/stream"

// ErrStreamEnded reports that the server closed the stream without a terminal frame.
var ErrStreamEnded = errors.New("stream ended unexpectedly")

// Handler consumes what a stream delivers.
type Handler interface {
	OnFrame(data []byte)
	OnError(err error)
}

// Stream is an open connection. Close is idempotent and does not block.
type Stream interface {
	Close()
}

// Opener opens a stream for a single query.
type Opener interface {
	Open(ctx context.Context, query string, h Handler) Stream
}

// HandlerFuncs adapts two functions to a Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Frame func(data []byte)
	Error func(err error)
}

func (f HandlerFuncs) OnFrame(data []byte) {
	if f.Frame != nil {
		f.Frame(data)
	}
}

func (f HandlerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// StreamURL builds the search endpoint for base and query.
func StreamURL(base, query string) string {
	return strings.TrimRight(base, "/") + SearchPath + "?query=" + url.QueryEscape(query)
}

// cancelStream closes a stream by cancelling the context its goroutine watches.
type cancelStream struct {
	cancel context.CancelFunc
}

func (s cancelStream) Close() {
	s.cancel()
}
