package replyloop

import (
	"context"
	"testing"

	"github.com/goose-agent/core/pkg/budget"
	"github.com/goose-agent/core/pkg/capabilities"
	"github.com/goose-agent/core/pkg/message"
	"github.com/goose-agent/core/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan Result) []Result {
	t.Helper()
	var out []Result
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestLoop_Reply_NoToolCalls(t *testing.T) {
	reg := capabilities.NewRegistry()
	reply := message.NewMessage(message.RoleAssistant, message.TextBlock{Text: "hello there"})
	stub := provider.NewStubProvider(provider.ModelConfig{ModelName: "stub", EstimatedLimit: 100000}, provider.StubResponse{Message: reply})

	loop := &Loop{Provider: stub, Capabilities: reg, Counter: budget.NewCharEstimator()}

	pending := []message.Message{message.NewMessage(message.RoleUser, message.TextBlock{Text: "hi"})}
	results := drain(t, loop.Reply(context.Background(), nil, pending))

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "hello there", results[0].Message.Text())
}

func TestLoop_Reply_DispatchesToolCallThenCompletes(t *testing.T) {
	reg := capabilities.NewRegistry()
	require.NoError(t, reg.AddExtensionBuiltin("developer", &fakeTool{
		name: "developer",
		tool: message.Tool{Name: "shell"},
		out:  message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: "ran"}}),
	}))

	toolRequest := message.NewMessage(message.RoleAssistant, message.ToolRequestBlock{
		ID:   "1",
		Call: message.OkToolCall(message.ToolCall{Name: "developer__shell", Arguments: map[string]interface{}{"cmd": "ls"}}),
	})
	finalReply := message.NewMessage(message.RoleAssistant, message.TextBlock{Text: "done"})

	stub := provider.NewStubProvider(provider.ModelConfig{ModelName: "stub", EstimatedLimit: 100000},
		provider.StubResponse{Message: toolRequest},
		provider.StubResponse{Message: finalReply},
	)

	loop := &Loop{Provider: stub, Capabilities: reg, Counter: budget.NewCharEstimator()}
	pending := []message.Message{message.NewMessage(message.RoleUser, message.TextBlock{Text: "run ls"})}

	results := drain(t, loop.Reply(context.Background(), nil, pending))
	require.Len(t, results, 3) // assistant tool request, user tool response, final assistant reply

	require.NoError(t, results[0].Err)
	toolReqs := results[0].Message.ToolRequests()
	require.Len(t, toolReqs, 1)
	assert.Equal(t, "developer__shell", toolReqs[0].Call.Ok.Name)

	toolResponseMsg := results[1].Message
	require.Len(t, toolResponseMsg.Content, 1)
	resp, ok := toolResponseMsg.Content[0].(message.ToolResponseBlock)
	require.True(t, ok)
	assert.Equal(t, "1", resp.ID)
	text := resp.Result.Ok[0].(message.TextBlock)
	assert.Equal(t, "ran", text.Text)

	assert.Equal(t, "done", results[2].Message.Text())
}

func TestLoop_Reply_CancelStopsImmediately(t *testing.T) {
	reg := capabilities.NewRegistry()
	stub := provider.NewStubProvider(provider.ModelConfig{ModelName: "stub", EstimatedLimit: 100000})

	loop := &Loop{Provider: stub, Capabilities: reg, Counter: budget.NewCharEstimator()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := drain(t, loop.Reply(ctx, nil, nil))
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestLoop_Reply_MaxStepsExceeded(t *testing.T) {
	reg := capabilities.NewRegistry()
	require.NoError(t, reg.AddExtensionBuiltin("developer", &fakeTool{
		name: "developer",
		tool: message.Tool{Name: "loop"},
		out:  message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: "again"}}),
	}))

	makeToolRequest := func() message.Message {
		return message.NewMessage(message.RoleAssistant, message.ToolRequestBlock{
			ID:   "1",
			Call: message.OkToolCall(message.ToolCall{Name: "developer__loop"}),
		})
	}

	stub := provider.NewStubProvider(provider.ModelConfig{ModelName: "stub", EstimatedLimit: 100000},
		provider.StubResponse{Message: makeToolRequest()},
		provider.StubResponse{Message: makeToolRequest()},
		provider.StubResponse{Message: makeToolRequest()},
	)

	loop := &Loop{Provider: stub, Capabilities: reg, Counter: budget.NewCharEstimator(), MaxSteps: 2}
	results := drain(t, loop.Reply(context.Background(), nil, nil))

	last := results[len(results)-1]
	assert.Error(t, last.Err)
}

type fakeTool struct {
	name string
	tool message.Tool
	out  message.ToolResultOutcome
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Instructions() string      { return "" }
func (f *fakeTool) Tools() []message.Tool     { return []message.Tool{f.tool} }
func (f *fakeTool) Resources(ctx context.Context) []message.ResourceItem { return nil }

func (f *fakeTool) Call(ctx context.Context, toolName string, arguments map[string]interface{}) message.ToolResultOutcome {
	return f.out
}
