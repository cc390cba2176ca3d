// Package provider defines the contract every language-model backend must
// satisfy to drive the reply loop. It intentionally exposes a single
// completion method: provider adapters (OpenAI, Anthropic, Databricks,
// Ollama, ...) live outside this module and implement Provider against
// their own wire formats.
package provider

import (
	"context"

	"github.com/goose-agent/core/pkg/message"
)

// Provider completes one turn: given a system prompt, the full working
// history, and the tools currently available, it returns the assistant's
// next Message plus token usage for that call. Implementations must
// return a *ContextLengthExceededError (or any error whose ErrorKind is
// ErrContextLengthExceeded) when the request exceeds the model's context
// window, so the reply loop can trigger a budgeter retry.
type Provider interface {
	Complete(ctx context.Context, systemPrompt string, messages []message.Message, tools []message.Tool) (message.Message, Usage, error)

	// Config describes the model this Provider drives, used by the
	// budgeter to size its target and by telemetry to label spans.
	Config() ModelConfig
}

// ModelConfig describes a model's identity and limits. EstimatedLimit is
// provider-declared rather than computed by the core: different backends
// reserve different amounts of headroom for their own reply, and only the
// adapter knows that margin.
type ModelConfig struct {
	ModelName      string
	ContextLimit   int
	EstimatedLimit int
	Temperature    *float64
	MaxTokens      *int
	TokenizerName  string
}

// Usage reports token accounting for a single Complete call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
