package mock

import (
	"context"
	"sync"

	"github.com/kiiskristo/howdoyoufindme/internal/llm"
)

// Provider is a scripted llm.Provider. Without CompleteFn it answers the n-th
// call with Replies[n], or "mock" once the replies run out.
type Provider struct {
	NameValue  string
	CompleteFn func(ctx context.Context, req llm.Request) (llm.Response, error)
	Replies    []string

	mu       sync.Mutex
	requests []llm.Request
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	call := len(p.requests) - 1
	p.mu.Unlock()

	if p.CompleteFn != nil {
		return p.CompleteFn(ctx, req)
	}

	content := "mock"
	if call < len(p.Replies) {
		content = p.Replies[call]
	}
	return llm.Response{
		Content:      content,
		FinishReason: "stop",
		Provider:     p.Name(),
		Model:        req.Model,
	}, nil
}

// Requests returns the requests received so far.
func (p *Provider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.Request(nil), p.requests...)
}
