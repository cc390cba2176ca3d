package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goose-agent/core/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]string

func (f fakeResolver) Lookup(name string) string { return f[name] }

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "goose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644))
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
`)
	cfg, err := Load(path, fakeResolver{})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Empty(t, cfg.Extensions)
}

func TestLoad_ParsesExtensions(t *testing.T) {
	path := writeConfig(t, `
provider: anthropic
model: claude-3
extensions:
  - type: stdio
    name: developer
    cmd: goose-mcp
    args: ["developer"]
    env:
      FOO: bar
  - type: sse
    name: remote
    uri: https://example.com/sse
  - type: builtin
    name: builtin-dev
`)
	cfg, err := Load(path, fakeResolver{})
	require.NoError(t, err)
	require.Len(t, cfg.Extensions, 3)

	stdio, ok := cfg.Extensions[0].(message.StdioExtensionConfig)
	require.True(t, ok)
	assert.Equal(t, "developer", stdio.Name)
	assert.Equal(t, "goose-mcp", stdio.Command)
	assert.Equal(t, []string{"developer"}, stdio.Args)
	assert.Equal(t, "bar", stdio.Env["FOO"])

	sse, ok := cfg.Extensions[1].(message.SSEExtensionConfig)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/sse", sse.URI)

	builtin, ok := cfg.Extensions[2].(message.BuiltinExtensionConfig)
	require.True(t, ok)
	assert.Equal(t, "builtin-dev", builtin.Name)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
nonsense: true
`)
	_, err := Load(path, fakeResolver{})
	assert.Error(t, err)
}

func TestLoad_RejectsMissingProvider(t *testing.T) {
	path := writeConfig(t, `
model: gpt-4o
`)
	_, err := Load(path, fakeResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestLoad_RejectsStdioExtensionWithoutCommand(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
extensions:
  - type: stdio
    name: developer
`)
	_, err := Load(path, fakeResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cmd is required")
}

func TestLoad_RejectsDuplicateExtensionNames(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
extensions:
  - type: builtin
    name: dev
  - type: builtin
    name: dev
`)
	_, err := Load(path, fakeResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
`)
	resolver := fakeResolver{"GOOSE_PROVIDER": "anthropic", "GOOSE_MODEL": "claude-3"}
	cfg, err := Load(path, resolver)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-3", cfg.Model)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
---
provider: anthropic
model: claude-3
`)
	_, err := Load(path, fakeResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single document")
}

func TestResolveProviderCredentials(t *testing.T) {
	resolver := fakeResolver{
		"OPENAI_API_KEY":    "sk-test",
		"ANTHROPIC_API_KEY": "ak-test",
		"OLLAMA_HOST":       "http://localhost:11434",
	}
	creds := ResolveProviderCredentials(resolver)
	assert.Equal(t, "sk-test", creds.OpenAIAPIKey)
	assert.Equal(t, "ak-test", creds.AnthropicAPIKey)
	assert.Equal(t, "http://localhost:11434", creds.OllamaHost)
	assert.Empty(t, creds.DatabricksToken)
}

func TestEnvSecretResolver_Lookup(t *testing.T) {
	t.Setenv("GOOSE_TEST_SECRET_VALUE", "hunter2")
	var resolver EnvSecretResolver
	assert.Equal(t, "hunter2", resolver.Lookup("GOOSE_TEST_SECRET_VALUE"))
	assert.Empty(t, resolver.Lookup("GOOSE_TEST_SECRET_MISSING"))
}
