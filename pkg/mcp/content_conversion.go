package mcp

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goose-agent/core/pkg/message"
)

// ConvertToolResultContent converts an MCP tools/call result's content
// items into the agent's ContentBlock tagged union. A plain http(s) image
// URL is carried as a URL reference rather than downloaded and re-encoded,
// since inlining it would duplicate the bytes into the conversation and
// can blow the token budget on nothing but a large picture.
func ConvertToolResultContent(items []ToolResultContent) ([]message.ContentBlock, error) {
	if len(items) == 0 {
		return nil, nil
	}

	out := make([]message.ContentBlock, 0, len(items))
	for _, item := range items {
		block, err := convertSingleContent(item)
		if err != nil {
			return nil, fmt.Errorf("failed to convert content item: %w", err)
		}
		if block != nil {
			out = append(out, block)
		}
	}
	return out, nil
}

func convertSingleContent(item ToolResultContent) (message.ContentBlock, error) {
	switch item.Type {
	case "text":
		return message.TextBlock{Text: item.Text}, nil
	case "image":
		return convertImageContent(item)
	case "resource":
		return convertResourceContent(item), nil
	default:
		return message.TextBlock{Text: fmt.Sprintf("unknown content type: %s", item.Type)}, nil
	}
}

func convertImageContent(item ToolResultContent) (message.ContentBlock, error) {
	if item.MimeType == "" {
		return nil, fmt.Errorf("missing MIME type for image content")
	}
	if item.Data == "" {
		return nil, fmt.Errorf("empty image data")
	}

	if strings.HasPrefix(item.Data, "http://") || strings.HasPrefix(item.Data, "https://") {
		return message.ImageBlock{MimeType: item.MimeType, URL: item.Data}, nil
	}

	if strings.HasPrefix(item.Data, "data:") {
		parts := strings.SplitN(item.Data, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URL format")
		}
		if _, err := base64.StdEncoding.DecodeString(parts[1]); err != nil {
			return nil, fmt.Errorf("failed to decode base64 image data: %w", err)
		}
		return message.ImageBlock{MimeType: item.MimeType, DataBase64: parts[1]}, nil
	}

	if _, err := base64.StdEncoding.DecodeString(item.Data); err != nil {
		return nil, fmt.Errorf("image data is neither a URL nor valid base64")
	}

	return message.ImageBlock{MimeType: item.MimeType, DataBase64: item.Data}, nil
}

// convertResourceContent handles resource-type content items (an MCP
// resource embedded directly in a tool result, as opposed to one listed
// via resources/list). image/* resources are carried by URI reference;
// everything else becomes text, preferring inline text over the bare URI.
func convertResourceContent(item ToolResultContent) message.ContentBlock {
	if strings.HasPrefix(item.MimeType, "image/") && item.URI != "" {
		return message.ImageBlock{MimeType: item.MimeType, URL: item.URI}
	}

	text := item.URI
	if item.Text != "" {
		text = item.Text
	}
	return message.TextBlock{Text: text}
}
