// Package llm abstracts the chat-completion backends the analysis pipeline
// talks to. Each analysis stage is a single system/user prompt pair.
package llm

import "context"

// Request is one prompt pair sent to a model.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the backend to constrain output to a single JSON object.
	JSON bool
}

// Usage captures token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Response is the model's reply to a Request.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Provider     string
	Model        string
}

// Provider is a chat-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
