package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/goose-agent/core/pkg/internal/retry"
)

// Client represents an MCP client that can communicate with MCP servers
// over any Transport implementation.
type Client struct {
	transport   Transport
	idGen       *IDGenerator
	initialized bool

	pending *PendingRequests

	// notifications delivers server-initiated notifications
	// (e.g. notifications/tools/list_changed) to whoever owns this client
	// (normally the capabilities registry). Buffered so the receive loop
	// never blocks on a slow consumer; when the buffer is full, the newly
	// arrived notification is dropped rather than stall the transport.
	notifications chan *MCPMessage

	serverInfo       ServerInfo
	serverCapability ServerCapabilities
	clientInfo       ClientInfo

	ctx    context.Context
	cancel context.CancelFunc

	// done is closed exactly once, by fail, the moment the transport is
	// known dead (receiveLoop hit a non-cancellation Receive error) or the
	// client is explicitly Closed. Callers that attach an extension watch
	// this to detect an MCP server dying mid-session instead of the
	// caller-initiated RemoveExtension path.
	done     chan struct{}
	doneOnce sync.Once
	doneErr  error

	config ClientConfig
}

// ClientConfig contains configuration for the MCP client.
type ClientConfig struct {
	ClientName    string
	ClientVersion string

	// RequestTimeoutMS is the timeout for individual requests in
	// milliseconds. Default: 30000 (30 seconds).
	RequestTimeoutMS int

	EnableLogging bool

	// MaxCallRetries bounds how many times a request is resent after a
	// transport-level failure (a dead pipe, a restarting SSE server).
	// Default: 2. A per-call timeout and a server-returned JSON-RPC error
	// are never retried, and nothing is resent once the client has failed
	// or been closed.
	MaxCallRetries int
}

// NewClient creates a new MCP client with the given transport.
func NewClient(transport Transport, config ClientConfig) *Client {
	if config.ClientName == "" {
		config.ClientName = "goose-agent"
	}
	if config.ClientVersion == "" {
		config.ClientVersion = "1.0.0"
	}
	if config.RequestTimeoutMS == 0 {
		config.RequestTimeoutMS = 30000
	}
	if config.MaxCallRetries == 0 {
		config.MaxCallRetries = 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		transport:     transport,
		idGen:         NewIDGenerator(),
		pending:       NewPendingRequests(),
		notifications: make(chan *MCPMessage, 64),
		done:          make(chan struct{}),
		clientInfo: ClientInfo{
			Name:    config.ClientName,
			Version: config.ClientVersion,
		},
		ctx:    ctx,
		cancel: cancel,
		config: config,
	}
}

// Connect connects the transport and runs the MCP initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return NewTransportError("failed to connect transport", err)
	}

	go c.receiveLoop()

	if err := c.initialize(ctx); err != nil {
		return err
	}

	c.initialized = true
	return nil
}

// Close tears down the client: every pending call observes a Closed error,
// the notifications channel is closed, and the transport is closed.
func (c *Client) Close() error {
	c.fail(NewTransportError("client closed", nil))
	return c.transport.Close()
}

// Notifications exposes server-initiated messages to the caller (normally
// the capabilities registry, which forwards tools/list_changed and
// resources/list_changed to its own cache invalidation).
func (c *Client) Notifications() <-chan *MCPMessage {
	return c.notifications
}

// Done returns a channel closed the moment this client stops being usable,
// whether from an explicit Close or from the transport dying on its own
// (child process exit, broken pipe, dropped SSE stream). Callers that keep
// a client attached (the capabilities registry) watch this to detect the
// latter case, which Close alone never observes.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that caused Done to close, or nil before that.
func (c *Client) Err() error {
	return c.doneErr
}

// fail marks the client dead exactly once: the client's internal context is
// cancelled (so any retry already in flight fails fast instead of resending
// into a dead transport), every pending call is failed with err, the
// notifications channel is closed, and Done fires. Safe to call from both
// receiveLoop (transport death) and Close (caller-initiated teardown); only
// the first call has any effect.
func (c *Client) fail(err error) {
	c.doneOnce.Do(func() {
		c.doneErr = err
		c.cancel()
		c.pending.Clear()
		close(c.notifications)
		close(c.done)
	})
}

func (c *Client) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ClientCapabilities{
			Experimental: make(map[string]interface{}),
			Roots:        &RootsCapability{ListChanged: false},
			Sampling:     &SamplingCapability{},
		},
		ClientInfo: c.clientInfo,
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return NewInitializationError("initialize failed", err)
	}

	c.serverInfo = result.ServerInfo
	c.serverCapability = result.Capabilities

	return c.notify(ctx, "notifications/initialized", nil)
}

// ListTools lists all available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]MCPTool, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	var result ListToolsResult
	if err := c.call(ctx, "tools/list", ListToolsParams{}, &result); err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// GetSerializableTools returns the full ListToolsResult, including
// pagination, suitable for caching or transmission.
func (c *Client) GetSerializableTools(ctx context.Context) (*ListToolsResult, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	var result ListToolsResult
	if err := c.call(ctx, "tools/list", ListToolsParams{}, &result); err != nil {
		return nil, fmt.Errorf("failed to get serializable tools: %w", err)
	}
	return &result, nil
}

// CallTool calls a tool on the MCP server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*CallToolResult, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	params := CallToolParams{Name: name, Arguments: arguments}
	var result CallToolResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources lists all available resources from the MCP server.
func (c *Client) ListResources(ctx context.Context) ([]MCPResource, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	var result ListResourcesResult
	if err := c.call(ctx, "resources/list", ListResourcesParams{}, &result); err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return result.Resources, nil
}

// ReadResource reads a resource's content from the MCP server. Text
// resources come back as UTF-8; blob resources come back base64-encoded.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	var result ReadResourceResult
	if err := c.call(ctx, "resources/read", ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts lists prompts; servers without prompt support simply return
// an empty set (not an error).
func (c *Client) ListPrompts(ctx context.Context) ([]MCPPrompt, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}
	if c.serverCapability.Prompts == nil {
		return nil, nil
	}

	var result ListPromptsResult
	if err := c.call(ctx, "prompts/list", ListPromptsParams{}, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// GetPrompt fetches a named prompt template.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]interface{}) (*GetPromptResult, error) {
	if !c.initialized {
		return nil, fmt.Errorf("client not initialized")
	}

	params := GetPromptParams{Name: name, Arguments: arguments}
	var result GetPromptResult
	if err := c.call(ctx, "prompts/get", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo { return c.serverInfo }

// ServerCapabilities returns the capabilities of the connected server.
func (c *Client) ServerCapabilities() ServerCapabilities { return c.serverCapability }

// call allocates a fresh id, registers it in the pending-requests table,
// sends the request, and waits for the paired response, a timeout, or
// cancellation — whichever comes first. A transport-level failure is
// resent, up to MaxCallRetries times, since it typically means a dropped
// pipe or a server mid-restart rather than a permanent fault; a per-call
// timeout or a server-returned JSON-RPC error is never retried.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	cfg := retry.Config{
		MaxRetries:   c.config.MaxCallRetries,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		ShouldRetry: func(err error) bool {
			if c.ctx.Err() != nil {
				return false
			}
			switch err.(type) {
			case *TransportError:
				return true
			default:
				return false
			}
		},
	}
	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		return c.callOnce(ctx, method, params, result)
	})
}

func (c *Client) callOnce(ctx context.Context, method string, params interface{}, result interface{}) error {
	id := c.idGen.Next()
	msg, err := CreateRequest(id, method, params)
	if err != nil {
		return err
	}

	responseCh := make(chan *MCPMessage, 1)
	c.pending.Insert(id, responseCh)
	defer c.pending.Remove(id)

	if err := c.transport.Send(ctx, msg); err != nil {
		return NewTransportError("failed to send request", err)
	}

	timeout := time.Duration(c.config.RequestTimeoutMS) * time.Millisecond
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response, ok := <-responseCh:
		if !ok || response == nil {
			return NewTransportError("connection closed", nil)
		}
		if response.Error != nil {
			return GetError(response)
		}
		if result != nil && response.Result != nil {
			if err := json.Unmarshal(response.Result, result); err != nil {
				return fmt.Errorf("failed to unmarshal result: %w", err)
			}
		}
		return nil

	case <-timer.C:
		return NewTimeoutError(method)

	case <-ctx.Done():
		return NewCancelledError(ctx.Err())

	case <-c.ctx.Done():
		return NewTransportError("client closed", nil)
	}
}

func (c *Client) notify(ctx context.Context, method string, params interface{}) error {
	msg, err := CreateNotification(method, params)
	if err != nil {
		return err
	}
	return c.transport.Send(ctx, msg)
}

// receiveLoop runs for the lifetime of the client, dispatching each
// incoming envelope to the pending-requests table (responses) or the
// notifications channel (server-initiated messages). Context cancellation
// (the client was explicitly Closed, which already ran fail) ends the loop
// quietly; any other Receive error means the transport died on its own
// (child exit, broken pipe, dropped SSE stream), so the loop calls fail
// itself, which clears every pending call with a Transport error and fires
// Done rather than leaving callers to find out one per-call timeout later.
func (c *Client) receiveLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msg, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.fail(NewTransportError("transport receive failed", err))
			}
			return
		}

		switch {
		case IsResponse(msg):
			// Decoded JSON numbers are float64; ids are allocated as uint64.
			if f, ok := msg.ID.(float64); ok && f >= 0 && f == float64(uint64(f)) {
				msg.ID = uint64(f)
			}
			c.pending.Respond(msg.ID, msg)
		case IsNotification(msg):
			select {
			case c.notifications <- msg:
			default:
			}
		case IsRequest(msg):
			c.handleRequest(msg)
		}
	}
}

// handleRequest responds to server-initiated requests. This client does
// not expose any server-callable methods, so every request is answered
// with method-not-found.
func (c *Client) handleRequest(msg *MCPMessage) {
	response := CreateErrorResponse(msg.ID, ErrorCodeMethodNotFound, "Method not found", nil)
	_ = c.transport.Send(c.ctx, response)
}
