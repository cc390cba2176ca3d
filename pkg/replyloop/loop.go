// Package replyloop drives one conversation turn as a lazy, pull-based
// sequence of messages: it assembles the budgeted request, calls the
// provider, dispatches any tool requests in parallel while preserving
// their original order, and repeats until the assistant stops requesting
// tools or the caller cancels.
package replyloop

import (
	"context"
	"sync"

	"github.com/goose-agent/core/pkg/budget"
	"github.com/goose-agent/core/pkg/capabilities"
	"github.com/goose-agent/core/pkg/message"
	"github.com/goose-agent/core/pkg/provider"
)

// Result is one item pulled from a Loop's output channel: either the next
// Message produced this turn, or a terminal error.
type Result struct {
	Message message.Message
	Err     error
}

// Loop drives the turn-taking state machine Idle -> Budgeting ->
// Completing -> (Dispatching -> Budgeting -> Completing)* -> Done.
type Loop struct {
	Provider     provider.Provider
	Capabilities *capabilities.Registry
	Counter      budget.TokenCounter

	// MaxSteps bounds how many Completing phases a single Reply call may
	// run before it gives up and ends the stream with an error, guarding
	// against a model that never stops requesting tools. Zero means
	// unlimited.
	MaxSteps int
}

// Reply runs one turn against history, starting from pending (the new
// user message(s) not yet appended to history), and returns a channel
// that yields each produced Message in order, closing after the final
// one or after ctx is cancelled. Cancelling ctx propagates to every
// in-flight tool dispatch and its underlying transport.
func (l *Loop) Reply(ctx context.Context, history []message.Message, pending []message.Message) <-chan Result {
	out := make(chan Result, 4)

	go func() {
		defer close(out)
		l.run(ctx, history, pending, out)
	}()

	return out
}

func (l *Loop) run(ctx context.Context, history []message.Message, pending []message.Message, out chan<- Result) {
	l.Capabilities.AdvanceTurn()

	tools := l.Capabilities.GetPrefixedTools()
	systemPrompt := l.Capabilities.GetSystemPrompt()
	modelConfig := l.Provider.Config()

	resources, err := l.Capabilities.GetResources(ctx)
	if err != nil {
		out <- Result{Err: err}
		return
	}

	messages := budget.PrepareInference(
		l.Counter,
		systemPrompt,
		tools,
		history,
		pending,
		modelConfig.EstimatedLimit,
		modelConfig.ModelName,
		resourceItems(resources),
	)

	steps := 0
	contextRetried := false
	for {
		select {
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
			return
		default:
		}

		if l.MaxSteps > 0 {
			steps++
			if steps > l.MaxSteps {
				out <- Result{Err: errMaxStepsExceeded}
				return
			}
		}

		// Budgeter trims to targetLimit, not contextLimit, so Complete
		// exceeding its limit signals the estimate itself was off; drop
		// the lowest-priority resource and retry once rather than failing
		// the turn outright. A second overflow ends the stream.
		responseMsg, usage, err := l.Provider.Complete(ctx, systemPrompt, budget.PopStatusPair(messages), tools)
		if err != nil {
			if provider.IsContextLengthExceeded(err) && len(resources) > 0 && !contextRetried {
				contextRetried = true
				drop := 0
				for i, r := range resources {
					if r.Priority < resources[drop].Priority {
						drop = i
					}
				}
				resources = append(append([]message.ResourceItem(nil), resources[:drop]...), resources[drop+1:]...)
				messages = budget.PrepareInference(l.Counter, systemPrompt, tools, history, pending, modelConfig.EstimatedLimit, modelConfig.ModelName, resourceItems(resources))
				continue
			}
			out <- Result{Err: err}
			return
		}

		contextRetried = false
		l.Capabilities.RecordUsage(modelConfig.ModelName, usage.InputTokens, usage.OutputTokens, usage.TotalTokens)

		select {
		case out <- Result{Message: responseMsg}:
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
			return
		}

		toolRequests := responseMsg.ToolRequests()
		if len(toolRequests) == 0 {
			return
		}

		toolResponse := dispatchToolRequests(ctx, l.Capabilities, toolRequests)

		select {
		case out <- Result{Message: toolResponse}:
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
			return
		}

		messages = budget.PopStatusPair(messages)
		nextPending := []message.Message{responseMsg, toolResponse}

		history = append(history, nextPending...)
		pending = nil

		resources, err = l.Capabilities.GetResources(ctx)
		if err != nil {
			out <- Result{Err: err}
			return
		}

		messages = budget.PrepareInference(l.Counter, systemPrompt, tools, history, pending, modelConfig.EstimatedLimit, modelConfig.ModelName, resourceItems(resources))
	}
}

// dispatchToolRequests runs every tool call in parallel and zips the
// results back into a single user message, preserving the original
// request order regardless of completion order.
func dispatchToolRequests(ctx context.Context, reg *capabilities.Registry, requests []message.ToolRequestBlock) message.Message {
	outcomes := make([]message.ToolResultOutcome, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		if req.Call.Err != nil {
			outcomes[i] = message.ErrToolResult(req.Call.Err)
			continue
		}

		wg.Add(1)
		go func(i int, call message.ToolCall) {
			defer wg.Done()
			outcomes[i] = reg.DispatchToolCall(ctx, call)
		}(i, *req.Call.Ok)
	}
	wg.Wait()

	blocks := make([]message.ContentBlock, len(requests))
	for i, req := range requests {
		blocks[i] = message.ToolResponseBlock{ID: req.ID, Result: outcomes[i]}
	}

	return message.NewMessage(message.RoleUser, blocks...)
}

func resourceItems(resources []message.ResourceItem) []budget.ResourceItem {
	out := make([]budget.ResourceItem, len(resources))
	for i, r := range resources {
		out[i] = budget.ResourceItem{Name: r.Name, Content: r.Content, Priority: r.Priority, Timestamp: r.Timestamp, TokenCount: r.TokenCount}
	}
	return out
}

var errMaxStepsExceeded = maxStepsError{}

type maxStepsError struct{}

func (maxStepsError) Error() string { return "reply loop exceeded its maximum step count" }
