package budget

import (
	"strings"
	"testing"
	"time"

	"github.com/goose-agent/core/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareInference_NoTrimNeeded(t *testing.T) {
	counter := NewCharEstimator()
	messages := []message.Message{message.NewMessage(message.RoleUser, message.TextBlock{Text: "hi"})}
	resources := []ResourceItem{
		{Name: "file.txt", Content: "small content", Priority: 1, Timestamp: time.Unix(100, 0)},
	}

	result := PrepareInference(counter, "system", nil, messages, nil, 100000, "stub", resources)

	require.Len(t, result, 3) // original + status pair
	statusResponse := result[len(result)-1]
	require.Len(t, statusResponse.Content, 1)
	text, ok := statusResponse.Content[0].(message.TextBlock)
	require.True(t, ok)
	assert.Contains(t, text.Text, "file.txt")
	assert.Contains(t, text.Text, "small content")
}

func TestPrepareInference_TrimsLowestPriorityFirst(t *testing.T) {
	counter := NewCharEstimator()
	big := strings.Repeat("x", 4000)

	resources := []ResourceItem{
		{Name: "low-priority", Content: big, Priority: 0.1, Timestamp: time.Unix(100, 0)},
		{Name: "high-priority", Content: "keep me", Priority: 0.9, Timestamp: time.Unix(100, 0)},
	}

	// target so tight that only one resource can survive
	result := PrepareInference(counter, "", nil, nil, nil, 50, "stub", resources)

	statusResponse := result[len(result)-1]
	text := statusResponse.Content[0].(message.TextBlock)
	assert.Contains(t, text.Text, "high-priority")
	assert.NotContains(t, text.Text, "low-priority")
}

func TestPrepareInference_TiebreakNewerTimestampWins(t *testing.T) {
	counter := NewCharEstimator()
	big := strings.Repeat("y", 4000)

	resources := []ResourceItem{
		{Name: "older", Content: big, Priority: 0.5, Timestamp: time.Unix(100, 0)},
		{Name: "newer", Content: "keep me", Priority: 0.5, Timestamp: time.Unix(200, 0)},
	}

	result := PrepareInference(counter, "", nil, nil, nil, 50, "stub", resources)

	statusResponse := result[len(result)-1]
	text := statusResponse.Content[0].(message.TextBlock)
	assert.Contains(t, text.Text, "newer")
	assert.NotContains(t, text.Text, "older")
}

func TestPrepareInference_StatusPairStructure(t *testing.T) {
	counter := NewCharEstimator()
	result := PrepareInference(counter, "sys", nil, nil, nil, 100000, "stub", nil)
	require.Len(t, result, 2)

	req := result[0]
	assert.Equal(t, message.RoleAssistant, req.Role)
	toolReqs := req.ToolRequests()
	require.Len(t, toolReqs, 1)
	assert.Equal(t, "000", toolReqs[0].ID)
	assert.Equal(t, "status", toolReqs[0].Call.Ok.Name)

	resp := result[1]
	assert.Equal(t, message.RoleUser, resp.Role)
	require.Len(t, resp.Content, 1)
	toolResp, ok := resp.Content[0].(message.ToolResponseBlock)
	require.True(t, ok)
	assert.Equal(t, "000", toolResp.ID)
}

func TestPopStatusPair_RemovesTrailingTwo(t *testing.T) {
	messages := []message.Message{
		message.NewMessage(message.RoleUser, message.TextBlock{Text: "hi"}),
		message.NewMessage(message.RoleAssistant, message.TextBlock{Text: "hello"}),
		message.NewMessage(message.RoleAssistant, message.ToolRequestBlock{ID: "000"}),
		message.NewMessage(message.RoleUser, message.ToolResponseBlock{ID: "000"}),
	}

	trimmed := PopStatusPair(messages)
	require.Len(t, trimmed, 2)
	assert.Equal(t, "hello", trimmed[1].Text())
}

func TestPopStatusPair_ShortSliceUnchanged(t *testing.T) {
	messages := []message.Message{message.NewMessage(message.RoleUser, message.TextBlock{Text: "hi"})}
	assert.Equal(t, messages, PopStatusPair(messages))
}

func TestCharEstimator_CountEverything(t *testing.T) {
	counter := NewCharEstimator()
	messages := []message.Message{message.NewMessage(message.RoleUser, message.TextBlock{Text: "hello world"})}
	tools := []message.Tool{{Name: "shell", Description: "run a command"}}

	count := counter.CountEverything("you are helpful", messages, tools, []string{"resource text"}, "stub")
	assert.Greater(t, count, 0)
}
