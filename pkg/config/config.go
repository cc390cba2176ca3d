// Package config loads the agent's YAML/JSON configuration: which
// provider and model to use, which extensions to attach, and the shared
// secret the HTTP surface checks on every request.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goose-agent/core/pkg/message"
	"gopkg.in/yaml.v3"
)

// Config is the top-level agent configuration.
type Config struct {
	Provider   string                    `yaml:"provider"`
	Model      string                    `yaml:"model"`
	Extensions []message.ExtensionConfig `yaml:"-"`
	SecretKey  string                    `yaml:"secret_key"`
}

// rawConfig mirrors Config but keeps Extensions as untyped YAML nodes so
// they can be dispatched to the right ExtensionConfig variant by kind.
type rawConfig struct {
	Provider   string         `yaml:"provider"`
	Model      string         `yaml:"model"`
	Extensions []rawExtension `yaml:"extensions"`
	SecretKey  string         `yaml:"secret_key"`
}

type rawExtension struct {
	Type    string            `yaml:"type"`
	Name    string            `yaml:"name"`
	Command string            `yaml:"cmd"`
	Args    []string          `yaml:"args"`
	URI     string            `yaml:"uri"`
	Env     map[string]string `yaml:"env"`
}

// Load reads and parses the configuration file at path (YAML, or JSON
// since JSON is a YAML subset), applies environment overrides, resolves
// secrets via resolver, and validates the result.
func Load(path string, resolver SecretResolver) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected a single document")
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, resolver)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	cfg := &Config{Provider: raw.Provider, Model: raw.Model, SecretKey: raw.SecretKey}

	for i, ext := range raw.Extensions {
		if strings.TrimSpace(ext.Name) == "" {
			return nil, fmt.Errorf("extensions[%d]: name is required", i)
		}
		switch ext.Type {
		case "stdio":
			if strings.TrimSpace(ext.Command) == "" {
				return nil, fmt.Errorf("extensions[%d] (%s): cmd is required for a stdio extension", i, ext.Name)
			}
			cfg.Extensions = append(cfg.Extensions, message.StdioExtensionConfig{
				Name: ext.Name, Command: ext.Command, Args: ext.Args, Env: ext.Env,
			})
		case "sse":
			if strings.TrimSpace(ext.URI) == "" {
				return nil, fmt.Errorf("extensions[%d] (%s): uri is required for an sse extension", i, ext.Name)
			}
			cfg.Extensions = append(cfg.Extensions, message.SSEExtensionConfig{
				Name: ext.Name, URI: ext.URI, Env: ext.Env,
			})
		case "builtin":
			cfg.Extensions = append(cfg.Extensions, message.BuiltinExtensionConfig{Name: ext.Name})
		default:
			return nil, fmt.Errorf("extensions[%d] (%s): unknown type %q, want stdio, sse, or builtin", i, ext.Name, ext.Type)
		}
	}

	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the config file,
// matching the teacher's convention of promoting a handful of well-known
// deployment knobs above the file instead of a general-purpose env
// binding layer.
func applyEnvOverrides(cfg *Config, resolver SecretResolver) {
	if value := strings.TrimSpace(resolver.Lookup("GOOSE_PROVIDER")); value != "" {
		cfg.Provider = value
	}
	if value := strings.TrimSpace(resolver.Lookup("GOOSE_MODEL")); value != "" {
		cfg.Model = value
	}
	if value := strings.TrimSpace(resolver.Lookup("GOOSE_SERVER__SECRET_KEY")); value != "" {
		cfg.SecretKey = value
	}
}

type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	if strings.TrimSpace(cfg.Provider) == "" {
		issues = append(issues, "provider is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		issues = append(issues, "model is required")
	}

	seen := map[string]struct{}{}
	for _, ext := range cfg.Extensions {
		name := ext.ExtensionName()
		if _, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("extensions: duplicate name %q", name))
			continue
		}
		seen[name] = struct{}{}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
