package search

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/stream"
)

// Controller owns the single active search stream and the state folded from it.
// StartSearch is the only action; everything else is read access.
type Controller struct {
	opener   stream.Opener
	logger   *zap.Logger
	metrics  *observability.Metrics
	onChange func(SessionState)
	baseCtx  context.Context

	mu      sync.Mutex
	current *session
	state   SessionState
	seq     uint64
	idle    chan struct{}

	// notifyMu serialises OnChange calls; lastSeq is the newest snapshot sent.
	notifyMu sync.Mutex
	lastSeq  uint64
}

type session struct {
	id       string
	stream   stream.Stream
	done     chan struct{}
	terminal bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = logging.OrNop(l) }
}

// WithMetrics records session and frame counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithOnChange registers a callback invoked with a state snapshot after each
// change. Calls are serialised and never go backwards: a snapshot older than
// one already delivered is dropped. The callback may call State, but must not
// call StartSearch synchronously.
func WithOnChange(fn func(SessionState)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithContext sets the parent context of every stream. Cancelling it tears the
// connection down without recording a transport error.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// NewController builds a controller that opens streams through opener.
func NewController(opener stream.Opener, opts ...Option) *Controller {
	idle := make(chan struct{})
	close(idle)
	c := &Controller{
		opener:  opener,
		logger:  zap.NewNop(),
		baseCtx: context.Background(),
		state:   SessionState{StatusMessages: []string{}},
		idle:    idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSearch supersedes any running session and opens a stream for query.
// It returns without waiting for the network.
func (c *Controller) StartSearch(query string) {
	c.mu.Lock()
	if prev := c.current; prev != nil {
		prev.stream.Close()
		if !prev.terminal {
			prev.terminal = true
			close(prev.done)
			c.metrics.RecordSessionFinished("superseded")
			c.logger.Debug("search superseded", zap.String("session_id", prev.id))
		}
	}

	sess := &session{id: uuid.NewString(), done: make(chan struct{})}
	c.current = sess
	c.state = NewSessionState(sess.id, query)
	c.metrics.RecordSessionStarted()
	c.logger.Info("search started", zap.String("session_id", sess.id), zap.String("query", query))

	// Openers never call back synchronously; the first callback blocks on c.mu
	// until sess.stream is set.
	sess.stream = c.opener.Open(c.baseCtx, query, &sessionHandler{c: c, sess: sess})
	seq, snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(seq, snapshot)
}

// State returns a snapshot of the current session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Step derives the progress indicator from the current state.
func (c *Controller) Step() Step {
	return c.State().Step()
}

// Done returns a channel closed when the current session is superseded, or
// terminal and its final state has been passed to the OnChange callback.
// Before the first search it is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return c.idle
	}
	return c.current.done
}

// snapshotLocked numbers a copy of the state. Caller holds c.mu.
func (c *Controller) snapshotLocked() (uint64, SessionState) {
	c.seq++
	return c.seq, c.state.Clone()
}

func (c *Controller) notify(seq uint64, s SessionState) {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.lastSeq {
		return
	}
	c.lastSeq = seq
	c.onChange(s)
}

// finishLocked freezes sess and releases its stream. Caller holds c.mu and
// closes sess.done once the final snapshot has been delivered.
func (c *Controller) finishLocked(sess *session, outcome string) {
	sess.terminal = true
	sess.stream.Close()
	c.metrics.RecordSessionFinished(outcome)
}

// activeLocked reports whether callbacks for sess may still change state.
func (c *Controller) activeLocked(sess *session) bool {
	return c.current == sess && !sess.terminal
}

type sessionHandler struct {
	c    *Controller
	sess *session
}

func (h *sessionHandler) OnFrame(data []byte) {
	c := h.c
	log := c.logger.With(zap.String("session_id", h.sess.id))

	ev, err := DecodeEvent(data)
	if err != nil {
		c.metrics.RecordDecodeError()
		log.Warn("failed to parse stream frame", zap.Error(err), zap.ByteString("frame", data))
		return
	}

	c.mu.Lock()
	if !c.activeLocked(h.sess) {
		c.mu.Unlock()
		log.Debug("dropping frame from inactive session", zap.String("type", ev.Type))
		return
	}

	c.metrics.RecordFrame(ev.Type)
	next, outcome, err := Apply(c.state, ev)
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordDecodeError()
		log.Warn("failed to parse task payload", zap.String("task", ev.Task), zap.Error(err))
		return
	}
	if !KnownEventType(ev.Type) {
		log.Debug("ignoring unknown frame type", zap.String("type", ev.Type))
	}

	c.state = next
	if outcome != Continue {
		c.finishLocked(h.sess, outcome.String())
		log.Info("search finished", zap.Stringer("outcome", outcome), zap.String("error", next.ErrorMessage))
	}
	seq, snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(seq, snapshot)
	if outcome != Continue {
		close(h.sess.done)
	}
}

func (h *sessionHandler) OnError(err error) {
	c := h.c

	c.mu.Lock()
	if !c.activeLocked(h.sess) {
		c.mu.Unlock()
		return
	}
	c.state = FailTransport(c.state)
	c.finishLocked(h.sess, "transport_error")
	seq, snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Error("search stream failed", zap.String("session_id", h.sess.id), zap.Error(err))
	c.notify(seq, snapshot)
	close(h.sess.done)
}
