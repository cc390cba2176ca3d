// Package developer implements the built-in "developer" extension: an
// in-process capabilities.Builtin offering a text editor (view / write /
// str_replace / undo_edit), a shell tool, and a screen_capture tool that
// is registered but stubbed out, since no cross-platform capture library
// is wired into this module.
package developer

import (
	"context"
	"fmt"

	"github.com/goose-agent/core/pkg/message"
)

// Name is the extension name this Builtin registers under; prefixed
// tool names are "developer__view", "developer__shell", and so on.
const Name = "developer"

const instructions = `The developer extension gives you file editing and shell execution tools.

Use "view" to read a file, "write" to create or overwrite one, "str_replace" to
replace an exact, unique substring within a file, and "undo_edit" to revert the
most recent edit made through this extension. Use "shell" to run a command and
capture its combined stdout/stderr.`

// Developer is the in-process implementation of capabilities.Builtin
// backing the "developer" extension.
type Developer struct {
	editor *textEditor
	shell  *shellRunner
}

// New constructs a Developer extension rooted at no particular directory;
// every tool call takes an absolute or caller-relative path/command as an
// argument, matching the teacher's stateless per-call tool idiom.
func New() *Developer {
	return &Developer{
		editor: newTextEditor(),
		shell:  newShellRunner(),
	}
}

func (d *Developer) Name() string         { return Name }
func (d *Developer) Instructions() string { return instructions }

func (d *Developer) Tools() []message.Tool {
	return []message.Tool{
		{
			Name:        "view",
			Description: "Read a file's contents.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "write",
			Description: "Create or overwrite a file with the given text.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":      map[string]interface{}{"type": "string"},
					"file_text": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path", "file_text"},
			},
		},
		{
			Name:        "str_replace",
			Description: "Replace a string in a file with a new string. old_str must appear exactly once.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    map[string]interface{}{"type": "string"},
					"old_str": map[string]interface{}{"type": "string"},
					"new_str": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path", "old_str", "new_str"},
			},
		},
		{
			Name:        "undo_edit",
			Description: "Undo the most recent edit made to a file through write or str_replace.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "shell",
			Description: "Run a shell command and return its combined stdout/stderr.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
				"required":   []string{"command"},
			},
		},
		{
			Name:        "screen_capture",
			Description: "Capture a screenshot of a display or window. Not supported on this platform.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"display": map[string]interface{}{"type": "integer"}},
			},
		},
	}
}

// Resources reports nothing: the developer extension does not own any
// standing artifacts the budgeter should attach to context.
func (d *Developer) Resources(ctx context.Context) []message.ResourceItem { return nil }

func (d *Developer) Call(ctx context.Context, toolName string, arguments map[string]interface{}) message.ToolResultOutcome {
	switch toolName {
	case "view":
		return d.editor.view(arguments)
	case "write":
		return d.editor.write(arguments)
	case "str_replace":
		return d.editor.strReplace(arguments)
	case "undo_edit":
		return d.editor.undoEdit(arguments)
	case "shell":
		return d.shell.run(ctx, arguments)
	case "screen_capture":
		return message.ErrToolResult(message.NewToolError(message.ErrExecution, "screen_capture is not supported on this platform"))
	default:
		return message.ErrToolResult(message.NewToolError(message.ErrNotFound, fmt.Sprintf("unknown developer tool %q", toolName)))
	}
}
