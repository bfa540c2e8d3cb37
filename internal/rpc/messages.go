package rpc

import "encoding/json"

// Event types carried in the `type` discriminator of a search-rank frame.
const (
	EventStatus       = "status"
	EventTaskComplete = "task_complete"
	EventComplete     = "complete"
	EventError        = "error"
)

// Task names carried by task_complete frames.
const (
	TaskKeywords = "keywords"
	TaskRanking  = "ranking"
)

// Event is one frame of the search-rank stream. Data holds the task payload
// untouched so that each consumer decodes it into its own result type.
type Event struct {
	Type    string          `json:"type"` // status|task_complete|complete|error
	Message string          `json:"message,omitempty"`
	Task    string          `json:"task,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SearchRequest starts a Connect server stream for a single query.
type SearchRequest struct {
	Query string `json:"query"`
}

// StreamFrame wraps one encoded Event on the Connect transport. The event stays
// as text so that the client classifies it exactly like an SSE data line.
type StreamFrame struct {
	Data string `json:"data"`
}

// StatusEvent builds a status frame.
func StatusEvent(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

// TaskEvent builds a task_complete frame with payload marshalled as JSON.
func TaskEvent(task string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventTaskComplete, Task: task, Data: data}, nil
}

// CompleteEvent builds the terminal success frame.
func CompleteEvent(message string) Event {
	return Event{Type: EventComplete, Message: message}
}

// ErrorEvent builds the terminal failure frame.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}
