// Package journal persists a session's message history as newline-
// delimited JSON: one Message per line, flushed and synced immediately
// for crash safety, so a killed process loses at most the turn in
// flight.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goose-agent/core/pkg/message"
)

// Journal appends Messages to a file, one JSON object per line. The
// synthesized budgeter status pair (see pkg/budget) is never passed to
// Append — it exists only in the working in-memory history for one
// inference call.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates path if it does not exist and appends from here on.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{path: path, file: f}, nil
}

// Append writes msg as the next line and syncs the file.
func (j *Journal) Append(msg message.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to journal: %w", err)
	}
	return j.file.Sync()
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Truncate rewrites the journal to contain exactly history, in order.
// Used after message.RewindMessages drops trailing messages following a
// cancelled turn, so the on-disk journal stays consistent with the
// in-memory state a new turn will build from.
func (j *Journal) Truncate(history []message.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal for truncation: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen journal for truncation: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, msg := range history {
		data, err := json.Marshal(msg)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("failed to write journal: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	reopened, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to reopen journal for append: %w", err)
	}
	f.Close()
	j.file = reopened
	return nil
}

// Load reads every message from path in order. A missing file is treated
// as an empty history, matching a brand-new session.
func Load(path string) ([]message.Message, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var history []message.Message
	decoder := json.NewDecoder(f)
	for {
		var msg message.Message
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}
