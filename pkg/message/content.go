package message

import (
	"encoding/json"
	"fmt"
)

// ContentBlock is the tagged-union content model. Every variant implements
// BlockType so callers can switch on it without a type assertion chain.
type ContentBlock interface {
	BlockType() string
}

// TextBlock carries plain text.
type TextBlock struct {
	Text     string
	Audience []AudienceTarget
	Priority *float64
}

func (TextBlock) BlockType() string { return "text" }

// ImageBlock carries image content either inline (DataBase64) or by
// reference (URL). Exactly one is expected to be set; a reference is
// preferred whenever the source already gave us a fetchable URL instead
// of bytes, since inlining a large image twice over blows the token
// budget for no benefit.
type ImageBlock struct {
	MimeType   string
	DataBase64 string
	URL        string
	Audience   []AudienceTarget
	Priority   *float64
}

func (ImageBlock) BlockType() string { return "image" }

// ToolRequestBlock is an assistant-issued tool invocation. ID must be
// unique within the message that carries it. Call is a tagged union:
// exactly one of Call.Ok / Call.Err is set.
type ToolRequestBlock struct {
	ID       string
	Call     ToolCallResult
	Audience []AudienceTarget
	Priority *float64
}

func (ToolRequestBlock) BlockType() string { return "tool_request" }

// ToolCallResult is Result<ToolCall, ToolError> realized as a Go struct.
type ToolCallResult struct {
	Ok  *ToolCall  `json:"ok,omitempty"`
	Err *ToolError `json:"err,omitempty"`
}

// OkToolCall wraps a successfully-parsed tool call.
func OkToolCall(call ToolCall) ToolCallResult { return ToolCallResult{Ok: &call} }

// ErrToolCall wraps a tool-call parse failure (e.g. malformed arguments).
func ErrToolCall(err *ToolError) ToolCallResult { return ToolCallResult{Err: err} }

// ToolResponseBlock carries the result of dispatching an earlier
// ToolRequestBlock with the same ID.
type ToolResponseBlock struct {
	ID       string
	Result   ToolResultOutcome
	Audience []AudienceTarget
	Priority *float64
}

func (ToolResponseBlock) BlockType() string { return "tool_response" }

// ToolResultOutcome is Result<[]ContentBlock, ToolError>.
type ToolResultOutcome struct {
	Ok  []ContentBlock
	Err *ToolError
}

// OkToolResult wraps a successful tool dispatch result.
func OkToolResult(blocks []ContentBlock) ToolResultOutcome {
	return ToolResultOutcome{Ok: blocks}
}

// ErrToolResult wraps a failed tool dispatch.
func ErrToolResult(err *ToolError) ToolResultOutcome {
	return ToolResultOutcome{Err: err}
}

// contentBlockWire is the on-the-wire shape every ContentBlock variant
// marshals to and unmarshals from, discriminated by Type (mirroring the
// "type" field convention MCP itself uses for tool result content).
type contentBlockWire struct {
	Type       string             `json:"type"`
	Text       string             `json:"text,omitempty"`
	MimeType   string             `json:"mimeType,omitempty"`
	DataBase64 string             `json:"data,omitempty"`
	URL        string             `json:"url,omitempty"`
	ID         string             `json:"id,omitempty"`
	Call       *ToolCallResult    `json:"toolCall,omitempty"`
	Result     *ToolResultOutcome `json:"toolResult,omitempty"`
	Audience   []AudienceTarget   `json:"audience,omitempty"`
	Priority   *float64           `json:"priority,omitempty"`
}

func marshalContentBlock(b ContentBlock) (contentBlockWire, error) {
	wire := contentBlockWire{Type: b.BlockType()}
	switch v := b.(type) {
	case TextBlock:
		wire.Text = v.Text
		wire.Audience = v.Audience
		wire.Priority = v.Priority
	case ImageBlock:
		wire.MimeType = v.MimeType
		wire.DataBase64 = v.DataBase64
		wire.URL = v.URL
		wire.Audience = v.Audience
		wire.Priority = v.Priority
	case ToolRequestBlock:
		wire.ID = v.ID
		wire.Call = &v.Call
		wire.Audience = v.Audience
		wire.Priority = v.Priority
	case ToolResponseBlock:
		wire.ID = v.ID
		wire.Result = &v.Result
		wire.Audience = v.Audience
		wire.Priority = v.Priority
	default:
		return contentBlockWire{}, fmt.Errorf("message: unknown content block type %T", b)
	}
	return wire, nil
}

func unmarshalContentBlock(wire contentBlockWire) (ContentBlock, error) {
	switch wire.Type {
	case "text":
		return TextBlock{Text: wire.Text, Audience: wire.Audience, Priority: wire.Priority}, nil
	case "image":
		return ImageBlock{MimeType: wire.MimeType, DataBase64: wire.DataBase64, URL: wire.URL, Audience: wire.Audience, Priority: wire.Priority}, nil
	case "tool_request":
		var call ToolCallResult
		if wire.Call != nil {
			call = *wire.Call
		}
		return ToolRequestBlock{ID: wire.ID, Call: call, Audience: wire.Audience, Priority: wire.Priority}, nil
	case "tool_response":
		var result ToolResultOutcome
		if wire.Result != nil {
			result = *wire.Result
		}
		return ToolResponseBlock{ID: wire.ID, Result: result, Audience: wire.Audience, Priority: wire.Priority}, nil
	default:
		return nil, fmt.Errorf("message: unknown content block type %q", wire.Type)
	}
}

// toolResultOutcomeWire mirrors ToolResultOutcome but with Ok serialized
// through the contentBlockWire tagged union.
type toolResultOutcomeWire struct {
	Ok  []contentBlockWire `json:"ok,omitempty"`
	Err *ToolError         `json:"err,omitempty"`
}

func (o ToolResultOutcome) MarshalJSON() ([]byte, error) {
	wire := toolResultOutcomeWire{Err: o.Err}
	for _, b := range o.Ok {
		blockWire, err := marshalContentBlock(b)
		if err != nil {
			return nil, err
		}
		wire.Ok = append(wire.Ok, blockWire)
	}
	return json.Marshal(wire)
}

func (o *ToolResultOutcome) UnmarshalJSON(data []byte) error {
	var wire toolResultOutcomeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	o.Err = wire.Err
	o.Ok = nil
	for _, blockWire := range wire.Ok {
		block, err := unmarshalContentBlock(blockWire)
		if err != nil {
			return err
		}
		o.Ok = append(o.Ok, block)
	}
	return nil
}
