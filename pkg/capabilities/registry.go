// Package capabilities implements the extension manager: it attaches MCP
// clients (stdio or SSE) or built-in in-process extensions, namespaces
// their tools, merges their system-prompt instructions, and dispatches
// tool calls back to whichever extension owns the requested tool.
package capabilities

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goose-agent/core/pkg/mcp"
	"github.com/goose-agent/core/pkg/message"
	"github.com/goose-agent/core/pkg/schema"
	"github.com/goose-agent/core/pkg/telemetry"
)

// initializationTimeout bounds how long an extension is given to reach
// Ready after Attaching begins, mirroring the 60-second MCP server start
// budget.
const initializationTimeout = 60 * time.Second

// Lifecycle is the state of one attached extension.
type Lifecycle string

const (
	LifecycleAttaching Lifecycle = "attaching"
	LifecycleReady     Lifecycle = "ready"
	LifecycleFailed    Lifecycle = "failed"
	LifecycleDetached  Lifecycle = "detached"
)

// Builtin is the in-process extension interface for capabilities that are
// not backed by a separate MCP server (e.g. the built-in developer tools).
type Builtin interface {
	Name() string
	Instructions() string
	Tools() []message.Tool
	Call(ctx context.Context, toolName string, arguments map[string]interface{}) message.ToolResultOutcome
	Resources(ctx context.Context) []message.ResourceItem
}

// DuplicateToolError is returned by AddExtensionMCP and AddExtensionBuiltin
// when one extension's own tool list declares the same bare tool name
// twice, which indicates a misbehaving server. Tools of different
// extensions never collide, since their prefixed names differ.
type DuplicateToolError struct {
	Extension string
	ToolName  string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("extension %q declares duplicate tool name %q", e.Extension, e.ToolName)
}

type extensionState struct {
	name      string
	lifecycle Lifecycle

	client       *mcp.Client // nil for builtin extensions
	builtin      Builtin
	instructions string
	tools        []message.Tool // prefixed

	resourceCache     []message.ResourceItem
	resourceCacheTurn uint64
}

// Registry owns every attached extension and is the single point of
// contact the reply loop and budgeter use to discover tools, system
// prompt text, and resources, and to dispatch a tool call.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]*extensionState
	turn       uint64
	usageMu    sync.Mutex
	usage      map[string]UsageTotal

	tracer trace.Tracer
}

// UsageTotal accumulates token usage for one model name across every
// Complete call recorded against it.
type UsageTotal struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// NewRegistry constructs an empty capabilities registry.
func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string]*extensionState),
		usage:      make(map[string]UsageTotal),
		tracer:     telemetry.GetTracer(nil),
	}
}

// SetTelemetry switches the registry's tool-dispatch tracing on or off.
// Unset (or nil), dispatch tracing is a no-op.
func (r *Registry) SetTelemetry(settings *telemetry.Settings) {
	r.tracer = telemetry.GetTracer(settings)
}

// RecordUsage accumulates token usage totals keyed by model name, for
// cost/usage reporting across a session.
func (r *Registry) RecordUsage(modelName string, input, output, total int) {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	u := r.usage[modelName]
	u.InputTokens += input
	u.OutputTokens += output
	u.TotalTokens += total
	r.usage[modelName] = u
}

// Usage returns a snapshot of accumulated usage per model name.
func (r *Registry) Usage() map[string]UsageTotal {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	out := make(map[string]UsageTotal, len(r.usage))
	for k, v := range r.usage {
		out[k] = v
	}
	return out
}

// AddExtensionMCP attaches an MCP client (already constructed with a
// Transport, not yet connected) under the given name. It connects, lists
// tools, and namespaces every tool name as "<name>__<tool>". The
// extension's lifecycle transitions Attaching -> Ready on success or
// Attaching -> Failed (and the error is returned) on timeout or any MCP
// error.
func (r *Registry) AddExtensionMCP(ctx context.Context, name string, client *mcp.Client) error {
	state := &extensionState{name: name, lifecycle: LifecycleAttaching, client: client}

	r.mu.Lock()
	r.extensions[name] = state
	r.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, initializationTimeout)
	defer cancel()

	if err := client.Connect(initCtx); err != nil {
		r.markFailed(name)
		return fmt.Errorf("extension %q failed to initialize: %w", name, err)
	}

	mcpTools, err := client.ListTools(initCtx)
	if err != nil {
		r.markFailed(name)
		return fmt.Errorf("extension %q failed to list tools: %w", name, err)
	}

	prefixed, err := prefixTools(name, mcpTools)
	if err != nil {
		r.markFailed(name)
		return err
	}

	r.mu.Lock()
	state.tools = prefixed
	state.lifecycle = LifecycleReady
	r.mu.Unlock()

	go r.watchClientFailure(name, client)

	return nil
}

// watchClientFailure marks name's extension Failed the moment its MCP
// client's transport dies on its own (child exit, broken pipe, dropped SSE
// stream), rather than leaving it Ready forever with no code path back to
// Failed except the caller-initiated RemoveExtension. It is a no-op if the
// extension has already been detached, or replaced by a later attachment
// under the same name, by the time client.Done() fires.
func (r *Registry) watchClientFailure(name string, client *mcp.Client) {
	<-client.Done()

	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.extensions[name]
	if !ok || state.client != client || state.lifecycle == LifecycleDetached {
		return
	}
	state.lifecycle = LifecycleFailed
}

// AddExtensionBuiltin attaches an in-process Builtin extension. Builtins
// are always Ready immediately; they have no network handshake to fail.
func (r *Registry) AddExtensionBuiltin(name string, b Builtin) error {
	prefixed, err := prefixTools(name, toolsFromBuiltin(b.Tools()))
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[name] = &extensionState{
		name:         name,
		lifecycle:    LifecycleReady,
		builtin:      b,
		instructions: b.Instructions(),
		tools:        prefixed,
	}
	return nil
}

// RemoveExtension detaches an extension, closing its MCP client if any.
func (r *Registry) RemoveExtension(name string) error {
	r.mu.Lock()
	state, ok := r.extensions[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("no such extension: %q", name)
	}
	delete(r.extensions, name)
	r.mu.Unlock()

	state.lifecycle = LifecycleDetached
	if state.client != nil {
		return state.client.Close()
	}
	return nil
}

// ListExtensions returns the names of every attached extension, sorted.
func (r *Registry) ListExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetPrefixedTools returns a snapshot of every tool across every Ready
// extension, namespaced as "<extension>__<tool>". The returned slice is a
// copy safe to hold across an awaited provider call without the registry
// lock.
func (r *Registry) GetPrefixedTools() []message.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []message.Tool
	names := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		state := r.extensions[name]
		if state.lifecycle != LifecycleReady {
			continue
		}
		tools := append([]message.Tool(nil), state.tools...)
		sort.SliceStable(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
		out = append(out, tools...)
	}
	return out
}

// GetSystemPrompt merges every Ready extension's instructions into one
// prompt fragment, ordered by extension name. The order in which
// extensions were added is not tracked.
func (r *Registry) GetSystemPrompt() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		state := r.extensions[name]
		if state.lifecycle != LifecycleReady {
			continue
		}
		if state.instructions != "" {
			parts = append(parts, fmt.Sprintf("# %s\n%s", name, state.instructions))
		}
	}
	return strings.Join(parts, "\n\n")
}

// GetResources returns every resource's content across every Ready
// extension for the current turn, caching the snapshot so repeated calls
// within the same turn don't re-fetch from every MCP server. Call
// AdvanceTurn between reply-loop turns to invalidate the cache.
func (r *Registry) GetResources(ctx context.Context) ([]message.ResourceItem, error) {
	r.mu.Lock()
	turn := r.turn
	names := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	r.mu.Unlock()

	var out []message.ResourceItem
	for _, name := range names {
		r.mu.RLock()
		state := r.extensions[name]
		r.mu.RUnlock()

		if state.lifecycle != LifecycleReady {
			continue
		}

		r.mu.Lock()
		if state.resourceCacheTurn == turn && state.resourceCache != nil {
			cached := state.resourceCache
			r.mu.Unlock()
			out = append(out, cached...)
			continue
		}
		r.mu.Unlock()

		resources, err := fetchResources(ctx, name, state)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", name, err)
		}

		r.mu.Lock()
		state.resourceCache = resources
		state.resourceCacheTurn = turn
		r.mu.Unlock()

		out = append(out, resources...)
	}
	return out, nil
}

// AdvanceTurn invalidates every extension's per-turn resource cache. Call
// once per reply loop turn, before the first GetResources of that turn.
func (r *Registry) AdvanceTurn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turn++
}

// DispatchToolCall routes a tool call to the extension that owns it
// (identified by the "<extension>__" prefix) and returns its outcome. A
// tool name with no matching extension, or an unprefixed name, yields an
// ErrNotFound outcome rather than a Go error: tool dispatch failures are
// data the reply loop folds back into the conversation.
func (r *Registry) DispatchToolCall(ctx context.Context, call message.ToolCall) message.ToolResultOutcome {
	extName, toolName, ok := splitPrefixed(call.Name)
	if !ok {
		return message.ErrToolResult(message.NewToolError(message.ErrNotFound, fmt.Sprintf("malformed tool name %q", call.Name)))
	}

	r.mu.RLock()
	state, exists := r.extensions[extName]
	r.mu.RUnlock()

	if !exists || state.lifecycle != LifecycleReady {
		return message.ErrToolResult(message.NewToolError(message.ErrNotFound, fmt.Sprintf("no ready extension %q", extName)).WithTool(extName, toolName))
	}

	if err := validateArguments(state.tools, call); err != nil {
		return message.ErrToolResult(message.NewToolError(message.ErrInvalidParameters, err.Error()).WithTool(extName, toolName))
	}

	outcome, _ := telemetry.RecordSpan(ctx, r.tracer, telemetry.SpanOptions{
		Name: "capabilities.dispatch_tool_call",
		Attributes: []attribute.KeyValue{
			attribute.String("goose.extension", extName),
			attribute.String("goose.tool", toolName),
		},
		EndWhenDone: true,
	}, func(ctx context.Context, span trace.Span) (message.ToolResultOutcome, error) {
		result := r.dispatchToReadyExtension(ctx, state, extName, toolName, call)
		if result.Err != nil {
			telemetry.RecordErrorOnSpan(span, result.Err)
		}
		return result, nil
	})
	return outcome
}

// dispatchToReadyExtension performs the actual call against a Ready
// extension's builtin or MCP client, translating any failure into a
// ToolResultOutcome rather than a Go error.
func (r *Registry) dispatchToReadyExtension(ctx context.Context, state *extensionState, extName, toolName string, call message.ToolCall) message.ToolResultOutcome {
	if state.builtin != nil {
		return state.builtin.Call(ctx, toolName, call.Arguments)
	}

	result, err := state.client.CallTool(ctx, toolName, call.Arguments)
	if err != nil {
		kind := mcp.ErrorKind(err)
		return message.ErrToolResult(message.NewToolError(kind, err.Error()).WithTool(extName, toolName))
	}

	blocks, convErr := mcp.ConvertToolResultContent(result.Content)
	if convErr != nil {
		return message.ErrToolResult(message.NewToolError(message.ErrExecution, convErr.Error()).WithTool(extName, toolName))
	}

	if result.IsError {
		text := ""
		if len(blocks) > 0 {
			if t, ok := blocks[0].(message.TextBlock); ok {
				text = t.Text
			}
		}
		return message.ErrToolResult(message.NewToolError(message.ErrExecution, text).WithTool(extName, toolName))
	}

	return message.OkToolResult(blocks)
}

func (r *Registry) markFailed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.extensions[name]; ok {
		state.lifecycle = LifecycleFailed
	}
}

// fetchResources lists an extension's resources and reads each one's
// content. A read failure for a single resource is not fatal to the
// whole turn: that resource is simply dropped from the budget rather than
// failing every extension's snapshot over one bad URI.
func fetchResources(ctx context.Context, extensionName string, state *extensionState) ([]message.ResourceItem, error) {
	if state.builtin != nil {
		return state.builtin.Resources(ctx), nil
	}

	mcpResources, err := state.client.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]message.ResourceItem, 0, len(mcpResources))
	for _, res := range mcpResources {
		read, err := state.client.ReadResource(ctx, res.URI)
		if err != nil {
			continue
		}

		content := ""
		for _, c := range read.Contents {
			if c.Text != "" {
				content += c.Text
			} else {
				content += c.Blob
			}
		}

		out = append(out, message.ResourceItem{
			Extension: extensionName,
			Name:      res.Name,
			URI:       res.URI,
			Content:   content,
			Priority:  0.5,
			Timestamp: now,
		})
	}
	return out, nil
}

func toolsFromBuiltin(tools []message.Tool) []mcp.MCPTool {
	out := make([]mcp.MCPTool, len(tools))
	for i, t := range tools {
		out[i] = mcp.MCPTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return out
}

func prefixTools(extension string, tools []mcp.MCPTool) ([]message.Tool, error) {
	seen := make(map[string]struct{}, len(tools))
	out := make([]message.Tool, 0, len(tools))
	for _, t := range tools {
		if _, dup := seen[t.Name]; dup {
			return nil, &DuplicateToolError{Extension: extension, ToolName: t.Name}
		}
		seen[t.Name] = struct{}{}
		out = append(out, message.Tool{
			Name:        extension + "__" + t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out, nil
}

// validateArguments checks call.Arguments against the InputSchema declared
// by the matching tool in tools, if any. A tool with no schema, or a call
// naming a tool absent from tools (should not happen once dispatch has
// already resolved the extension), is let through unchecked: the schema is
// advisory metadata a server may simply not have supplied.
func validateArguments(tools []message.Tool, call message.ToolCall) error {
	for _, t := range tools {
		if t.Name != call.Name {
			continue
		}
		if len(t.InputSchema) == 0 {
			return nil
		}
		arguments := call.Arguments
		if arguments == nil {
			arguments = map[string]interface{}{}
		}
		if err := schema.NewJSONSchema(t.InputSchema).Validate(arguments); err != nil {
			return fmt.Errorf("arguments invalid: %w", err)
		}
		return nil
	}
	return nil
}

func splitPrefixed(name string) (extension, tool string, ok bool) {
	idx := strings.Index(name, "__")
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+2:], true
}
