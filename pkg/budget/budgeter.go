package budget

import (
	"fmt"
	"sort"
	"time"

	"github.com/goose-agent/core/pkg/message"
)

// ResourceItem is one piece of attached resource content competing for a
// place in the budget. Name identifies it for the synthesized status
// message; Priority and Timestamp decide trim order.
type ResourceItem struct {
	Name       string
	Content    string
	Priority   float64
	Timestamp  time.Time
	TokenCount *int
}

const statusToolRequestID = "000"

// PrepareInference assembles the messages that will actually be sent to
// the provider: the existing history plus pending messages, with a
// synthesized status pair (an assistant ToolRequest "000" paired with a
// user ToolResponse "000") appended at the end carrying any attached
// resource content. If the total would exceed targetLimit, resources are
// dropped lowest-priority-first (ties broken by older timestamp) until it
// fits; the status pair is never persisted to the journal — callers must
// strip it (PopStatusPair) before the next turn's pending messages are
// appended and PrepareInference is run again.
func PrepareInference(
	counter TokenCounter,
	systemPrompt string,
	tools []message.Tool,
	messages []message.Message,
	pending []message.Message,
	targetLimit int,
	modelName string,
	resourceItems []ResourceItem,
) []message.Message {
	contents := make([]string, len(resourceItems))
	for i, item := range resourceItems {
		contents[i] = item.Content
	}

	all := make([]message.Message, 0, len(messages)+len(pending))
	all = append(append(all, messages...), pending...)
	approxCount := counter.CountEverything(systemPrompt, all, tools, contents, modelName)

	var kept []ResourceItem

	if approxCount > targetLimit {
		items := make([]ResourceItem, len(resourceItems))
		copy(items, resourceItems)

		for i := range items {
			if items[i].TokenCount == nil {
				count := counter.CountTokens(items[i].Content, modelName)
				items[i].TokenCount = &count
			}
		}

		sort.SliceStable(items, func(i, j int) bool {
			diff := items[j].Priority - items[i].Priority
			if absFloat(diff) < 1e-3 {
				return items[i].Timestamp.After(items[j].Timestamp)
			}
			return diff < 0
		})

		currentTokens := approxCount
		for currentTokens > targetLimit && len(items) > 0 {
			removed := items[len(items)-1]
			items = items[:len(items)-1]
			if removed.TokenCount != nil {
				currentTokens -= *removed.TokenCount
				if currentTokens < 0 {
					currentTokens = 0
				}
			}
		}

		kept = items
	} else {
		kept = resourceItems
	}

	statusStr := renderStatusContent(kept)

	newMessages := make([]message.Message, 0, len(messages)+len(pending)+2)
	newMessages = append(newMessages, messages...)
	newMessages = append(newMessages, pending...)

	statusRequest := message.NewMessage(message.RoleAssistant, message.ToolRequestBlock{
		ID:   statusToolRequestID,
		Call: message.OkToolCall(message.ToolCall{Name: "status", Arguments: map[string]interface{}{}}),
	})
	statusResponse := message.NewMessage(message.RoleUser, message.ToolResponseBlock{
		ID:     statusToolRequestID,
		Result: message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: statusStr}}),
	})

	newMessages = append(newMessages, statusRequest, statusResponse)
	return newMessages
}

func renderStatusContent(items []ResourceItem) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s\n```\n%s\n```\n", item.Name, item.Content)
	}
	return out
}

// PopStatusPair removes the trailing synthesized status pair (assistant
// ToolRequest "000" + user ToolResponse "000") that PrepareInference
// appends, so the next turn's pending messages are appended to the real
// history rather than after a stale status snapshot.
func PopStatusPair(messages []message.Message) []message.Message {
	if len(messages) < 2 {
		return messages
	}
	return messages[:len(messages)-2]
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
