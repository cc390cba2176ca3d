// Package budget implements the context budgeter: it estimates token usage
// for a prepared request and trims attached resources, lowest priority
// first, until the request fits the model's target limit.
package budget

import (
	"github.com/goose-agent/core/pkg/message"
)

// TokenCounter estimates token counts for the pieces of a request. The
// core ships only a deterministic character-based estimator; a real
// tokenizer (tiktoken, sentencepiece, ...) is a provider-adapter concern
// and is expected to implement this same interface.
type TokenCounter interface {
	// CountTokens estimates the token count of a single string, optionally
	// tuned for a named model's tokenizer.
	CountTokens(text string, modelName string) int

	// CountEverything estimates the total token count of a full request:
	// system prompt, message history, tool definitions, and any resource
	// text that would be attached as a status message.
	CountEverything(systemPrompt string, messages []message.Message, tools []message.Tool, resources []string, modelName string) int
}

// charsPerToken is the deterministic ratio used by the estimator. It is
// intentionally crude: the core has no tokenizer, only a contract other
// packages can depend on to size requests consistently.
const charsPerToken = 4

// CharEstimator is a deterministic TokenCounter that estimates one token
// per charsPerToken runes, with no model-specific tuning. It is always
// available and needs no external tokenizer dependency.
type CharEstimator struct{}

// NewCharEstimator constructs the default estimator.
func NewCharEstimator() CharEstimator { return CharEstimator{} }

func (CharEstimator) CountTokens(text string, modelName string) int {
	return estimateTokens(text)
}

func (e CharEstimator) CountEverything(systemPrompt string, messages []message.Message, tools []message.Tool, resources []string, modelName string) int {
	total := estimateTokens(systemPrompt)

	for _, m := range messages {
		total += estimateMessageTokens(m)
	}

	for _, tool := range tools {
		total += estimateTokens(tool.Name)
		total += estimateTokens(tool.Description)
		total += estimateSchemaTokens(tool.InputSchema)
	}

	for _, r := range resources {
		total += estimateTokens(r)
	}

	return total
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	n := len([]rune(s))
	return (n + charsPerToken - 1) / charsPerToken
}

func estimateMessageTokens(m message.Message) int {
	total := 0
	for _, block := range m.Content {
		switch b := block.(type) {
		case message.TextBlock:
			total += estimateTokens(b.Text)
		case message.ImageBlock:
			// Flat per-image overhead: image bytes are not tokenized as
			// text, but a fixed allowance keeps the estimate conservative
			// without inflating it with base64 character counts.
			total += 85
		case message.ToolRequestBlock:
			if b.Call.Ok != nil {
				total += estimateTokens(b.Call.Ok.Name)
				total += estimateSchemaTokens(b.Call.Ok.Arguments)
			}
			if b.Call.Err != nil {
				total += estimateTokens(b.Call.Err.Message)
			}
		case message.ToolResponseBlock:
			for _, inner := range b.Result.Ok {
				if t, ok := inner.(message.TextBlock); ok {
					total += estimateTokens(t.Text)
				}
			}
			if b.Result.Err != nil {
				total += estimateTokens(b.Result.Err.Message)
			}
		}
	}
	return total
}

func estimateSchemaTokens(schema map[string]interface{}) int {
	if schema == nil {
		return 0
	}
	total := 0
	for k, v := range schema {
		total += estimateTokens(k)
		if s, ok := v.(string); ok {
			total += estimateTokens(s)
		} else {
			total += 2
		}
	}
	return total
}
