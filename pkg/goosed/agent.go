// Package goosed implements the agent process: it owns one or more live
// agents (a provider + capabilities registry + reply loop bound to a
// journal file) and exposes them over the HTTP surface in server.go.
package goosed

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/goose-agent/core/pkg/budget"
	"github.com/goose-agent/core/pkg/capabilities"
	"github.com/goose-agent/core/pkg/config"
	"github.com/goose-agent/core/pkg/developer"
	"github.com/goose-agent/core/pkg/journal"
	"github.com/goose-agent/core/pkg/message"
	"github.com/goose-agent/core/pkg/provider"
	"github.com/goose-agent/core/pkg/replyloop"
	"github.com/goose-agent/core/pkg/telemetry"
)

// Agent is one conversation: a provider, its extensions, a journal file,
// and the reply loop that drives them.
type Agent struct {
	ID      string
	Model   string
	History []message.Message

	loop    *replyloop.Loop
	journal *journal.Journal
}

// Manager creates and looks up Agents by id. It is the process-wide
// entry point the HTTP surface calls into.
type Manager struct {
	cfg *config.Config

	journalDir string
	telemetry  *telemetry.Settings

	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewManager builds a Manager from a loaded Config. journalDir is where
// each agent's session journal is created; an empty dir disables
// journaling (useful for short-lived test agents).
func NewManager(cfg *config.Config, journalDir string, settings *telemetry.Settings) *Manager {
	return &Manager{cfg: cfg, journalDir: journalDir, telemetry: settings, agents: make(map[string]*Agent)}
}

// Providers lists the provider names this process can drive. Only "stub"
// is wired: no concrete vendor adapter (OpenAI, Anthropic, Databricks,
// Ollama) is part of this module, per the provider contract's scope.
func (m *Manager) Providers() []string { return []string{"stub"} }

// Versions reports the agent protocol version this process speaks.
func (m *Manager) Versions() []string { return []string{"v1"} }

// CreateAgent builds a new Agent bound to the configured provider/model
// and attaches every configured extension, including the built-in
// developer extension whenever it is named in the config.
func (m *Manager) CreateAgent(ctx context.Context) (*Agent, error) {
	id := uuid.NewString()

	registry := capabilities.NewRegistry()
	if m.telemetry != nil {
		registry.SetTelemetry(m.telemetry)
	}

	for _, ext := range m.cfg.Extensions {
		switch cfg := ext.(type) {
		case message.BuiltinExtensionConfig:
			if cfg.Name == developer.Name {
				if err := registry.AddExtensionBuiltin(developer.Name, developer.New()); err != nil {
					return nil, fmt.Errorf("attach builtin %q: %w", cfg.Name, err)
				}
				continue
			}
			return nil, fmt.Errorf("attach builtin %q: no built-in extension registered under that name", cfg.Name)
		case message.StdioExtensionConfig, message.SSEExtensionConfig:
			client, err := newMCPClient(cfg)
			if err != nil {
				return nil, err
			}
			if err := registry.AddExtensionMCP(ctx, ext.ExtensionName(), client); err != nil {
				return nil, err
			}
		}
	}

	modelConfig := provider.ModelConfig{
		ModelName:      m.cfg.Model,
		ContextLimit:   128_000,
		EstimatedLimit: 100_000,
		TokenizerName:  "char-estimate",
	}
	stub := provider.NewStubProvider(modelConfig)

	loop := &replyloop.Loop{
		Provider:     stub,
		Capabilities: registry,
		Counter:      budget.NewCharEstimator(),
		MaxSteps:     25,
	}

	agent := &Agent{ID: id, Model: m.cfg.Model, loop: loop}

	if m.journalDir != "" {
		path := fmt.Sprintf("%s/%s.ndjson", m.journalDir, id)
		j, err := journal.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		agent.journal = j
	}

	m.mu.Lock()
	m.agents[id] = agent
	m.mu.Unlock()

	return agent, nil
}

// Agent looks up a previously created agent by id.
func (m *Manager) Agent(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// Reply runs one turn of the given agent's reply loop against userText,
// appending each produced message to both in-memory history and the
// journal (if one is open), and forwards every message to onMessage as it
// is produced. A terminal error from the loop truncates the journal and is
// returned.
func (a *Agent) Reply(ctx context.Context, userText string, onMessage func(message.Message) error) error {
	userMsg := message.NewMessage(message.RoleUser, message.TextBlock{Text: userText})

	results := a.loop.Reply(ctx, a.History, []message.Message{userMsg})

	history := append(a.History, userMsg)
	for result := range results {
		if result.Err != nil {
			if a.journal != nil {
				_ = a.journal.Truncate(history)
			}
			return result.Err
		}

		history = append(history, result.Message)
		if a.journal != nil {
			if err := a.journal.Append(result.Message); err != nil {
				return fmt.Errorf("append to journal: %w", err)
			}
		}
		if err := onMessage(result.Message); err != nil {
			return err
		}
	}

	a.History = history
	return nil
}

// Cancel rewinds the agent's history to the last durable user message,
// matching the reply loop's mid-turn cancellation contract, and truncates
// the journal to match.
func (a *Agent) Cancel() error {
	a.History = message.RewindMessages(a.History)
	if a.journal != nil {
		return a.journal.Truncate(a.History)
	}
	return nil
}

// Close releases the agent's journal file handle, if any.
func (a *Agent) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}
