package message

import "time"

// ResourceMimeKind distinguishes text resources (UTF-8) from blob
// resources (returned as base64 text).
type ResourceMimeKind string

const (
	ResourceMimeText ResourceMimeKind = "text"
	ResourceMimeBlob ResourceMimeKind = "blob"
)

// Resource is a (possibly large) artifact owned by an extension, attached
// to the model's context as status content. URIs are unique within the
// active set maintained by one extension.
type Resource struct {
	URI       string
	MimeKind  ResourceMimeKind
	Name      string
	Priority  float64
	Timestamp time.Time
}

// ResourceItem is a Resource joined with its fetched content and
// (optionally memoized) token count, as produced by the capabilities
// registry's GetResources and consumed by the budgeter.
type ResourceItem struct {
	Extension  string
	Name       string
	URI        string
	Content    string
	Priority   float64
	Timestamp  time.Time
	TokenCount *int
}

// ExtensionConfig is a tagged union describing how to attach an
// extension: as a child process (Stdio), a remote SSE server (SSE), or an
// in-process implementation (Builtin).
type ExtensionConfig interface {
	Kind() string
	ExtensionName() string
}

// StdioExtensionConfig spawns a child process speaking MCP over stdio.
type StdioExtensionConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

func (c StdioExtensionConfig) Kind() string          { return "stdio" }
func (c StdioExtensionConfig) ExtensionName() string { return c.Name }

// SSEExtensionConfig connects to a remote MCP server over Server-Sent
// Events.
type SSEExtensionConfig struct {
	Name string
	URI  string
	Env  map[string]string
}

func (c SSEExtensionConfig) Kind() string          { return "sse" }
func (c SSEExtensionConfig) ExtensionName() string { return c.Name }

// BuiltinExtensionConfig selects an in-process extension registered under
// Name (e.g. "developer").
type BuiltinExtensionConfig struct {
	Name string
}

func (c BuiltinExtensionConfig) Kind() string          { return "builtin" }
func (c BuiltinExtensionConfig) ExtensionName() string { return c.Name }
