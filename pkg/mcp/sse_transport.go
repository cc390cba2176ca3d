package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	internalhttp "github.com/goose-agent/core/pkg/internal/http"
	"github.com/goose-agent/core/pkg/providerutils/streaming"
)

// SSETransport implements Transport over a GET request that streams
// Server-Sent Events. The server announces the URL outbound requests
// should POST to in an initial "endpoint" event; outbound Send blocks
// until that URL has been learned. There is no reconnect on error: a
// broken stream raises Closed to every pending caller and it is the
// capabilities registry's decision whether to re-attach.
type SSETransport struct {
	baseURI string
	headers map[string]string
	config  TransportConfig

	httpClient *internalhttp.Client

	mu          sync.Mutex
	connected   bool
	endpointURL string
	endpointSet chan struct{}

	incoming chan *MCPMessage
	closed   chan struct{}
	closeErr error

	cancel context.CancelFunc
}

// SSETransportConfig contains configuration for an SSE transport.
type SSETransportConfig struct {
	// URI is the server's event-stream endpoint (GET, Accept: text/event-stream).
	URI string

	// Headers are additional HTTP headers sent on both the GET and the
	// POST-back leg (e.g. authorization).
	Headers map[string]string

	// RateLimit caps outbound POSTs per second to the server-announced
	// endpoint, e.g. to stay under a remote SSE server's own throttling.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int

	Config TransportConfig
}

// NewSSETransport creates a new SSE transport. The connection is not
// opened until Connect is called.
func NewSSETransport(cfg SSETransportConfig) *SSETransport {
	return &SSETransport{
		baseURI:     cfg.URI,
		headers:     cfg.Headers,
		config:      cfg.Config,
		httpClient: internalhttp.NewClient(internalhttp.Config{
			Headers:   cfg.Headers,
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
		}),
		endpointSet: make(chan struct{}),
		incoming:    make(chan *MCPMessage, 64),
		closed:      make(chan struct{}),
	}
}

// Connect opens the GET stream and starts the background reader that
// parses SSE events and watches for the endpoint announcement.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	resp, err := t.httpClient.DoStream(streamCtx, internalhttp.Request{
		Method:  http.MethodGet,
		Path:    t.baseURI,
		Headers: map[string]string{"Accept": "text/event-stream"},
	})
	if err != nil {
		cancel()
		return NewTransportError("failed to open SSE stream", err)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	go t.readLoop(resp.Body)

	return nil
}

// readLoop parses SSE events until the stream ends or errors, then closes
// the transport and fails every pending caller with Closed — there is no
// automatic reconnect.
func (t *SSETransport) readLoop(body io.ReadCloser) {
	defer body.Close()
	parser := streaming.NewSSEParser(body)

	for {
		event, err := parser.Next()
		if err != nil {
			t.shutdown(NewTransportError("SSE stream closed", err))
			return
		}

		switch event.Event {
		case "endpoint":
			t.setEndpoint(event.Data)
		case "", "message":
			var msg MCPMessage
			if err := json.Unmarshal([]byte(event.Data), &msg); err != nil {
				continue
			}
			select {
			case t.incoming <- &msg:
			default:
			}
		default:
			var msg MCPMessage
			if json.Unmarshal([]byte(event.Data), &msg) == nil {
				select {
				case t.incoming <- &msg:
				default:
				}
			}
		}
	}
}

func (t *SSETransport) setEndpoint(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endpointURL == "" {
		t.endpointURL = url
		close(t.endpointSet)
	}
}

func (t *SSETransport) shutdown(err error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	t.closeErr = err
	t.mu.Unlock()

	close(t.closed)
}

// Send POSTs the envelope to the server-announced endpoint. It blocks
// until that endpoint has been announced (bounded by ctx).
func (t *SSETransport) Send(ctx context.Context, msg *MCPMessage) error {
	select {
	case <-t.endpointSet:
	case <-t.closed:
		return NewTransportError("transport closed", t.closeErr)
	case <-ctx.Done():
		return NewCancelledError(ctx.Err())
	}

	t.mu.Lock()
	url := t.endpointURL
	t.mu.Unlock()

	resp, err := t.httpClient.Do(ctx, internalhttp.Request{
		Method: http.MethodPost,
		Path:   url,
		Body:   msg,
	})
	if err != nil {
		return NewTransportError("POST failed", err)
	}
	if resp.StatusCode >= 400 {
		return NewTransportError(fmt.Sprintf("POST returned HTTP %d", resp.StatusCode), nil)
	}
	return nil
}

// Receive returns the next envelope parsed from the event stream.
func (t *SSETransport) Receive(ctx context.Context) (*MCPMessage, error) {
	select {
	case msg, ok := <-t.incoming:
		if !ok {
			return nil, NewTransportError("transport closed", t.closeErr)
		}
		return msg, nil
	case <-t.closed:
		return nil, NewTransportError("transport closed", t.closeErr)
	case <-ctx.Done():
		return nil, NewCancelledError(ctx.Err())
	}
}

// Close aborts the GET stream. No reconnect is attempted.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if connected {
		t.shutdown(NewTransportError("closed by caller", nil))
	}
	return nil
}

// IsConnected reports whether the event stream is still open.
func (t *SSETransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
