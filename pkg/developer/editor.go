package developer

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/goose-agent/core/pkg/message"
)

// maxFileSize bounds what "view" will read back; mirrors the original
// implementation's 2 MB ceiling.
const maxFileSize = 2 * 1024 * 1024

// maxCharCount is the original implementation's independent character-count
// ceiling (1 << 20). A pure-ASCII file can clear maxFileSize in bytes while
// still exceeding this, so both checks apply.
const maxCharCount = 1 << 20

// textEditor implements view/write/str_replace/undo_edit. History is kept
// per-path so undo_edit can revert the most recent write or str_replace;
// it is not persisted across process restarts.
type textEditor struct {
	mu      sync.Mutex
	history map[string][]byte
}

func newTextEditor() *textEditor {
	return &textEditor{history: make(map[string][]byte)}
}

func stringArg(arguments map[string]interface{}, name string) (string, error) {
	v, ok := arguments[name]
	if !ok {
		return "", fmt.Errorf("missing %q parameter", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string", name)
	}
	return s, nil
}

func (e *textEditor) view(arguments map[string]interface{}) message.ToolResultOutcome {
	path, err := stringArg(arguments, "path")
	if err != nil {
		return invalidParams(err.Error())
	}

	info, err := os.Stat(path)
	if err != nil {
		return execErr(fmt.Sprintf("failed to stat file: %s", err))
	}
	if info.Size() > maxFileSize {
		return execErr(fmt.Sprintf("file exceeds the maximum readable size of %d bytes", maxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return execErr(fmt.Sprintf("failed to read file: %s", err))
	}
	if charCount := utf8.RuneCount(data); charCount > maxCharCount {
		return execErr(fmt.Sprintf("file exceeds the maximum readable size of %d characters", maxCharCount))
	}
	return message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: string(data)}})
}

func (e *textEditor) write(arguments map[string]interface{}) message.ToolResultOutcome {
	path, err := stringArg(arguments, "path")
	if err != nil {
		return invalidParams(err.Error())
	}
	text, err := stringArg(arguments, "file_text")
	if err != nil {
		return invalidParams(err.Error())
	}

	e.saveHistory(path)

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return execErr(fmt.Sprintf("failed to write file: %s", err))
	}
	return message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: fmt.Sprintf("wrote %d bytes to %s", len(text), path)}})
}

func (e *textEditor) strReplace(arguments map[string]interface{}) message.ToolResultOutcome {
	path, err := stringArg(arguments, "path")
	if err != nil {
		return invalidParams(err.Error())
	}
	oldStr, err := stringArg(arguments, "old_str")
	if err != nil {
		return invalidParams(err.Error())
	}
	newStr, err := stringArg(arguments, "new_str")
	if err != nil {
		return invalidParams(err.Error())
	}

	if _, err := os.Stat(path); err != nil {
		return invalidParams(fmt.Sprintf("file %q does not exist; use write to create a new file", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return execErr(fmt.Sprintf("failed to read file: %s", err))
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	if count == 0 {
		return invalidParams("old_str must appear exactly once in the file, but it does not appear in the file")
	}
	if count > 1 {
		return invalidParams("old_str must appear exactly once in the file, but it appears multiple times")
	}

	e.saveHistory(path)

	newContent := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		return execErr(fmt.Sprintf("failed to write file: %s", err))
	}
	return message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: fmt.Sprintf("replaced 1 occurrence in %s", path)}})
}

func (e *textEditor) undoEdit(arguments map[string]interface{}) message.ToolResultOutcome {
	path, err := stringArg(arguments, "path")
	if err != nil {
		return invalidParams(err.Error())
	}

	e.mu.Lock()
	prior, ok := e.history[path]
	if ok {
		delete(e.history, path)
	}
	e.mu.Unlock()

	if !ok {
		return invalidParams(fmt.Sprintf("no edit history for %q", path))
	}
	if err := os.WriteFile(path, prior, 0o644); err != nil {
		return execErr(fmt.Sprintf("failed to restore file: %s", err))
	}
	return message.OkToolResult([]message.ContentBlock{message.TextBlock{Text: fmt.Sprintf("reverted %s", path)}})
}

// saveHistory records a file's content (if it exists) just before a
// mutating call overwrites it, so a single undo_edit can revert it. Only
// one prior version is kept per path, matching the original's
// last-write-wins undo semantics.
func (e *textEditor) saveHistory(path string) {
	data, err := os.ReadFile(path)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.history[path] = nil
		return
	}
	e.history[path] = data
}

func invalidParams(msg string) message.ToolResultOutcome {
	return message.ErrToolResult(message.NewToolError(message.ErrInvalidParameters, msg))
}

func execErr(msg string) message.ToolResultOutcome {
	return message.ErrToolResult(message.NewToolError(message.ErrExecution, msg))
}
