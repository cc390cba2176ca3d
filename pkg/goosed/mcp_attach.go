package goosed

import (
	"fmt"

	"github.com/goose-agent/core/pkg/message"
	"github.com/goose-agent/core/pkg/mcp"
)

// newMCPClient builds an unconnected mcp.Client over the transport named
// by an ExtensionConfig; AddExtensionMCP performs the actual Connect.
func newMCPClient(cfg message.ExtensionConfig) (*mcp.Client, error) {
	switch c := cfg.(type) {
	case message.StdioExtensionConfig:
		env := make([]string, 0, len(c.Env))
		for k, v := range c.Env {
			env = append(env, k+"="+v)
		}
		transport := mcp.NewStdioTransport(mcp.StdioTransportConfig{
			Command: c.Command,
			Args:    c.Args,
			Env:     env,
		})
		return mcp.NewClient(transport, mcp.ClientConfig{ClientName: "goosed"}), nil

	case message.SSEExtensionConfig:
		transport := mcp.NewSSETransport(mcp.SSETransportConfig{URI: c.URI})
		return mcp.NewClient(transport, mcp.ClientConfig{ClientName: "goosed"}), nil

	default:
		return nil, fmt.Errorf("unsupported extension config kind %q", cfg.Kind())
	}
}
