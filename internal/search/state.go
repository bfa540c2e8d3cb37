package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/kiiskristo/howdoyoufindme/internal/rpc"
)

const (
	// UnknownErrorMessage is shown when the server sends an error frame without a message.
	UnknownErrorMessage = "Unknown error"
	// ConnectionErrorMessage is shown for any transport-level failure.
	ConnectionErrorMessage = "Stream connection error."
)

// SessionState is the externally visible state of one search session.
// ErrorMessage is empty unless the session failed. Result pointers are
// replaced, never mutated, so a copy of the state can be shared freely.
type SessionState struct {
	SessionID      string         `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Query          string         `json:"query" yaml:"query"`
	Loading        bool           `json:"loading" yaml:"loading"`
	ErrorMessage   string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	StatusMessages []string       `json:"status_messages" yaml:"status_messages"`
	KeywordResult  *KeywordResult `json:"keyword_result" yaml:"keyword_result"`
	RankingResult  *RankingResult `json:"ranking_result" yaml:"ranking_result"`
}

// Outcome tells whether a frame ended the session.
type Outcome int

const (
	Continue Outcome = iota
	Completed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "complete"
	case Failed:
		return "error"
	default:
		return "continue"
	}
}

// Step is the coarse progress indicator shown next to status messages.
type Step int

const (
	StepIdle Step = iota
	StepStarted
	StepAnalyzing
	StepRanking
	StepDone
)

// MaxStep is the number of the final step.
const MaxStep = StepDone

var (
	rankingPhaseMarkers  = []string{"ranking", "market position"}
	analysisPhaseMarkers = []string{"analyz", "analys", "keyword"}
)

// NewSessionState returns the state a session starts in.
func NewSessionState(sessionID, query string) SessionState {
	return SessionState{
		SessionID:      sessionID,
		Query:          query,
		Loading:        true,
		StatusMessages: []string{},
	}
}

// Clone returns a copy whose status slice does not alias s.
func (s SessionState) Clone() SessionState {
	s.StatusMessages = slices.Clone(s.StatusMessages)
	if s.StatusMessages == nil {
		s.StatusMessages = []string{}
	}
	return s
}

// HasError reports whether the session ended in failure.
func (s SessionState) HasError() bool {
	return s.ErrorMessage != ""
}

// Step derives the progress indicator from the current state.
func (s SessionState) Step() Step {
	if !s.Loading && s.RankingResult != nil {
		return StepDone
	}
	if !s.Loading && len(s.StatusMessages) == 0 {
		return StepIdle
	}
	if anyMessageContains(s.StatusMessages, rankingPhaseMarkers) {
		return StepRanking
	}
	if s.KeywordResult != nil || anyMessageContains(s.StatusMessages, analysisPhaseMarkers) {
		return StepAnalyzing
	}
	return StepStarted
}

func anyMessageContains(messages, markers []string) bool {
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// DecodeEvent parses one raw frame.
func DecodeEvent(data []byte) (rpc.Event, error) {
	var ev rpc.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return rpc.Event{}, fmt.Errorf("decode frame: %w", err)
	}
	return ev, nil
}

// KnownEventType reports whether t is one of the frame types Apply acts on.
func KnownEventType(t string) bool {
	switch t {
	case rpc.EventStatus, rpc.EventTaskComplete, rpc.EventComplete, rpc.EventError:
		return true
	}
	return false
}

// Apply folds one event into s and reports whether it ended the session.
// s is never modified; an error means the event carried an undecodable task
// payload and the returned state equals s.
func Apply(s SessionState, ev rpc.Event) (SessionState, Outcome, error) {
	switch ev.Type {
	case rpc.EventStatus:
		if ev.Message != "" {
			s.StatusMessages = appendMessage(s.StatusMessages, ev.Message)
		}
	case rpc.EventTaskComplete:
		if !hasPayload(ev.Data) {
			return s, Continue, nil
		}
		switch ev.Task {
		case rpc.TaskKeywords:
			var res KeywordResult
			if err := json.Unmarshal(ev.Data, &res); err != nil {
				return s, Continue, fmt.Errorf("decode %s payload: %w", ev.Task, err)
			}
			s.KeywordResult = &res
		case rpc.TaskRanking:
			var res RankingResult
			if err := json.Unmarshal(ev.Data, &res); err != nil {
				return s, Continue, fmt.Errorf("decode %s payload: %w", ev.Task, err)
			}
			s.RankingResult = &res
		}
	case rpc.EventComplete:
		if ev.Message != "" {
			s.StatusMessages = appendMessage(s.StatusMessages, ev.Message)
		}
		s.Loading = false
		return s, Completed, nil
	case rpc.EventError:
		s.ErrorMessage = ev.Message
		if s.ErrorMessage == "" {
			s.ErrorMessage = UnknownErrorMessage
		}
		s.Loading = false
		return s, Failed, nil
	}
	return s, Continue, nil
}

// FailTransport moves s into the transport-failure terminal shape.
func FailTransport(s SessionState) SessionState {
	s.ErrorMessage = ConnectionErrorMessage
	s.Loading = false
	return s
}

// appendMessage never writes into the backing array of msgs, so earlier
// snapshots keep their contents.
func appendMessage(msgs []string, msg string) []string {
	return append(slices.Clip(msgs), msg)
}

func hasPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
