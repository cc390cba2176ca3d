package message

import "encoding/json"

// ToolCall is a name + JSON-object-shaped arguments pair, as issued by a
// provider or parsed from the wire.
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Tool is a registered tool definition, as exposed to a Provider. Name is
// the externally-visible, namespaced name ("extension__tool"); the prefix
// is stripped by the capabilities registry before dispatch.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Annotations map[string]interface{}
}

// ToolErrorKind is the abstract error taxonomy from the error handling
// design. It is shared by the MCP client, the capabilities registry, and
// the reply loop so that a single switch can classify any failure in the
// system.
type ToolErrorKind string

const (
	ErrInvalidParameters     ToolErrorKind = "invalid_parameters"
	ErrExecution             ToolErrorKind = "execution"
	ErrNotFound              ToolErrorKind = "not_found"
	ErrInitialization        ToolErrorKind = "initialization"
	ErrTransport             ToolErrorKind = "transport"
	ErrTimeout               ToolErrorKind = "timeout"
	ErrCancelled             ToolErrorKind = "cancelled"
	ErrContextLengthExceeded ToolErrorKind = "context_length_exceeded"
)

// ToolError is the concrete error value carried inside a ToolCallResult or
// ToolResultOutcome when something went wrong. It never escapes the reply
// stream on its own; it is captured into a ToolResponseBlock instead.
type ToolError struct {
	Kind      ToolErrorKind
	Message   string
	Extension string
	ToolName  string
	Cause     error
}

func (e *ToolError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Extension != "" {
		msg = e.Extension + "/" + e.ToolName + ": " + msg
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Cause }

// toolErrorWire drops Cause, which is an opaque error interface and not
// itself a stable wire format; Message already carries its text.
type toolErrorWire struct {
	Kind      ToolErrorKind `json:"kind"`
	Message   string        `json:"message"`
	Extension string        `json:"extension,omitempty"`
	ToolName  string        `json:"toolName,omitempty"`
}

func (e ToolError) MarshalJSON() ([]byte, error) {
	return json.Marshal(toolErrorWire{Kind: e.Kind, Message: e.Message, Extension: e.Extension, ToolName: e.ToolName})
}

func (e *ToolError) UnmarshalJSON(data []byte) error {
	var wire toolErrorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.Kind, e.Message, e.Extension, e.ToolName = wire.Kind, wire.Message, wire.Extension, wire.ToolName
	return nil
}

// NewToolError builds a ToolError of the given kind.
func NewToolError(kind ToolErrorKind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// WithTool annotates a ToolError with the extension/tool name it came from.
func (e *ToolError) WithTool(extension, tool string) *ToolError {
	e.Extension = extension
	e.ToolName = tool
	return e
}
