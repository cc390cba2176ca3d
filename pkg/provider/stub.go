package provider

import (
	"context"
	"sync"

	"github.com/goose-agent/core/pkg/message"
)

// StubResponse is one scripted reply for a StubProvider.
type StubResponse struct {
	Message message.Message
	Usage   Usage
	Err     error
}

// StubProvider is a deterministic, in-memory Provider used by tests that
// exercise the reply loop, the budgeter, and the capabilities registry
// without a real backend. Responses are consumed in order; once
// exhausted, Complete returns ErrExhausted.
type StubProvider struct {
	mu        sync.Mutex
	responses []StubResponse
	calls     []StubCall
	config    ModelConfig
}

// StubCall records one Complete invocation for assertions.
type StubCall struct {
	SystemPrompt string
	Messages     []message.Message
	Tools        []message.Tool
}

// NewStubProvider builds a StubProvider that returns responses in order.
func NewStubProvider(config ModelConfig, responses ...StubResponse) *StubProvider {
	return &StubProvider{responses: responses, config: config}
}

func (p *StubProvider) Complete(ctx context.Context, systemPrompt string, messages []message.Message, tools []message.Tool) (message.Message, Usage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, StubCall{SystemPrompt: systemPrompt, Messages: messages, Tools: tools})

	if len(p.responses) == 0 {
		return message.Message{}, Usage{}, ErrExhausted
	}

	next := p.responses[0]
	p.responses = p.responses[1:]
	return next.Message, next.Usage, next.Err
}

func (p *StubProvider) Config() ModelConfig { return p.config }

// Calls returns every Complete invocation observed so far, in order.
func (p *StubProvider) Calls() []StubCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StubCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// ErrExhausted is returned once a StubProvider's scripted responses run out.
var ErrExhausted = &UpstreamError{Provider: "stub", Message: "no scripted responses remaining"}
