package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// Replay is an Opener that delivers a fixed frame sequence, whatever the query.
// After the last frame it reports Err, or ErrStreamEnded when Err is nil,
// unless the stream was closed first.
type Replay struct {
	Frames [][]byte
	Err    error
}

// NewReplay builds a Replay from string frames.
func NewReplay(frames ...string) *Replay {
	r := &Replay{Frames: make([][]byte, 0, len(frames))}
	for _, f := range frames {
		r.Frames = append(r.Frames, []byte(f))
	}
	return r
}

// LoadReplay reads one frame per line. Blank lines are skipped and an optional
// "data:" prefix is stripped, so both NDJSON logs and raw SSE captures load.
func LoadReplay(r io.Reader) (*Replay, error) {
	replay := &Replay{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			line = bytes.TrimSpace(rest)
		}
		replay.Frames = append(replay.Frames, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	return replay, nil
}

// Open delivers the frames on a new goroutine.
func (r *Replay) Open(ctx context.Context, _ string, h Handler) Stream {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for _, frame := range r.Frames {
			if ctx.Err() != nil {
				return
			}
			h.OnFrame(frame)
		}
		if ctx.Err() != nil {
			return
		}
		err := r.Err
		if err == nil {
			err = ErrStreamEnded
		}
		h.OnError(err)
	}()
	return cancelStream{cancel: cancel}
}
