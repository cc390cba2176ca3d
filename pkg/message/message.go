// Package message defines the tagged-union data model shared by the
// reply loop, the capabilities registry, and the MCP client: messages,
// content blocks, tool calls, tools, and resources.
package message

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AudienceTarget names a display-layer consumer of a ContentBlock.
type AudienceTarget string

const (
	AudienceAssistant AudienceTarget = "assistant"
	AudienceUser      AudienceTarget = "user"
)

// Message is one turn of conversation history. Once appended to a
// ConversationState's history it must not be mutated in place; build a
// new Message (and a new Content slice) instead.
type Message struct {
	Role      Role
	CreatedAt time.Time
	Content   []ContentBlock
}

// NewMessage constructs a Message with the given role and blocks, stamped
// with the current time.
func NewMessage(role Role, blocks ...ContentBlock) Message {
	return Message{Role: role, CreatedAt: time.Now(), Content: blocks}
}

// messageWire is Message's on-the-wire shape, with Content serialized
// through the contentBlockWire tagged union so the journal can round-trip
// every ContentBlock variant.
type messageWire struct {
	Role      Role               `json:"role"`
	CreatedAt time.Time          `json:"createdAt"`
	Content   []contentBlockWire `json:"content"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	wire := messageWire{Role: m.Role, CreatedAt: m.CreatedAt}
	for _, b := range m.Content {
		blockWire, err := marshalContentBlock(b)
		if err != nil {
			return nil, err
		}
		wire.Content = append(wire.Content, blockWire)
	}
	return json.Marshal(wire)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role, m.CreatedAt = wire.Role, wire.CreatedAt
	m.Content = nil
	for _, blockWire := range wire.Content {
		block, err := unmarshalContentBlock(blockWire)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, block)
	}
	return nil
}

// ToolRequests returns every ToolRequestBlock in the message, in order.
func (m Message) ToolRequests() []ToolRequestBlock {
	var out []ToolRequestBlock
	for _, b := range m.Content {
		if tr, ok := b.(ToolRequestBlock); ok {
			out = append(out, tr)
		}
	}
	return out
}

// Text concatenates every TextBlock in the message, in order, separated by
// newlines. Used for display and for rewind's "most recent user Text
// message" search.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(TextBlock); ok {
			if out != "" {
				out += "\n"
			}
			out += t.Text
		}
	}
	return out
}

// HasText reports whether the message contains at least one TextBlock.
func (m Message) HasText() bool {
	for _, b := range m.Content {
		if _, ok := b.(TextBlock); ok {
			return true
		}
	}
	return false
}

// RewindMessages drops trailing messages from history until the most
// recent user message containing a TextBlock, then drops that message
// too. It models a user's mid-turn cancellation: the turn never
// completed, so the history is restored to its state just before the
// cancelled send. An empty or all-non-text-user history rewinds to nil.
func RewindMessages(history []Message) []Message {
	for len(history) > 0 {
		last := history[len(history)-1]
		if last.Role == RoleUser && last.HasText() {
			break
		}
		history = history[:len(history)-1]
	}
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	return history
}
