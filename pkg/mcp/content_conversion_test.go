package mcp

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/goose-agent/core/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSingleContent_Text(t *testing.T) {
	block, err := convertSingleContent(ToolResultContent{Type: "text", Text: "Hello, world!"})
	require.NoError(t, err)

	text, ok := block.(message.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Hello, world!", text.Text)
	assert.Equal(t, "text", text.BlockType())
}

func TestConvertImageContent_Base64(t *testing.T) {
	imageData := "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

	block, err := convertImageContent(ToolResultContent{Type: "image", Data: imageData, MimeType: "image/png"})
	require.NoError(t, err)

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, imageData, img.DataBase64)
	assert.Empty(t, img.URL)
}

func TestConvertImageContent_DataURL(t *testing.T) {
	imageData := "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="
	dataURL := "data:image/png;base64," + imageData

	block, err := convertImageContent(ToolResultContent{Type: "image", Data: dataURL, MimeType: "image/png"})
	require.NoError(t, err)

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, imageData, img.DataBase64)
}

func TestConvertImageContent_HttpsURL(t *testing.T) {
	imageURL := "https://example.com/image.png"

	block, err := convertImageContent(ToolResultContent{Type: "image", Data: imageURL, MimeType: "image/png"})
	require.NoError(t, err)

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, imageURL, img.URL)
	assert.Empty(t, img.DataBase64)
}

func TestConvertImageContent_HttpURL(t *testing.T) {
	imageURL := "http://example.com/image.jpg"

	block, err := convertImageContent(ToolResultContent{Type: "image", Data: imageURL, MimeType: "image/jpeg"})
	require.NoError(t, err)

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, imageURL, img.URL)
}

func TestConvertImageContent_MissingMimeType(t *testing.T) {
	_, err := convertImageContent(ToolResultContent{Type: "image", Data: "base64data"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing MIME type")
}

func TestConvertImageContent_EmptyData(t *testing.T) {
	_, err := convertImageContent(ToolResultContent{Type: "image", MimeType: "image/png"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty image data")
}

func TestConvertImageContent_InvalidBase64(t *testing.T) {
	_, err := convertImageContent(ToolResultContent{Type: "image", Data: "not-valid-base64!!!", MimeType: "image/png"})
	assert.Error(t, err)
}

func TestConvertImageContent_InvalidDataURL(t *testing.T) {
	_, err := convertImageContent(ToolResultContent{Type: "image", Data: "data:image/png", MimeType: "image/png"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data URL format")
}

func TestConvertResourceContent_ImageResource(t *testing.T) {
	block := convertResourceContent(ToolResultContent{
		Type:     "resource",
		URI:      "https://example.com/chart.png",
		MimeType: "image/png",
	})

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/chart.png", img.URL)
	assert.Equal(t, "image/png", img.MimeType)
}

func TestConvertResourceContent_TextResource(t *testing.T) {
	block := convertResourceContent(ToolResultContent{
		Type:     "resource",
		URI:      "file:///path/to/file.txt",
		Text:     "File content here",
		MimeType: "text/plain",
	})

	text, ok := block.(message.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "File content here", text.Text)
}

func TestConvertResourceContent_URIOnly(t *testing.T) {
	block := convertResourceContent(ToolResultContent{
		Type:     "resource",
		URI:      "https://example.com/document.pdf",
		MimeType: "application/pdf",
	})

	text, ok := block.(message.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/document.pdf", text.Text)
}

func TestConvertToolResultContent_MixedContent(t *testing.T) {
	imageData := "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

	items := []ToolResultContent{
		{Type: "text", Text: "Here is the chart:"},
		{Type: "image", Data: imageData, MimeType: "image/png"},
		{Type: "text", Text: "The chart shows an upward trend."},
	}

	results, err := ConvertToolResultContent(items)
	require.NoError(t, err)
	require.Len(t, results, 3)

	text1, ok := results[0].(message.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "Here is the chart:", text1.Text)

	img, ok := results[1].(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, imageData, img.DataBase64)

	text2, ok := results[2].(message.TextBlock)
	require.True(t, ok)
	assert.Equal(t, "The chart shows an upward trend.", text2.Text)
}

func TestConvertToolResultContent_EmptyArray(t *testing.T) {
	results, err := ConvertToolResultContent([]ToolResultContent{})
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestConvertToolResultContent_NilArray(t *testing.T) {
	results, err := ConvertToolResultContent(nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestConvertToolResultContent_UnknownType(t *testing.T) {
	items := []ToolResultContent{{Type: "unknown-type", Text: "Some data"}}

	results, err := ConvertToolResultContent(items)
	require.NoError(t, err)
	require.Len(t, results, 1)

	text, ok := results[0].(message.TextBlock)
	require.True(t, ok)
	assert.True(t, strings.Contains(text.Text, "unknown content type"))
}

func TestConvertImageContent_LargeBase64KeptIntact(t *testing.T) {
	largeImageBytes := make([]byte, 50000)
	for i := range largeImageBytes {
		largeImageBytes[i] = byte(i % 256)
	}
	imageData := base64.StdEncoding.EncodeToString(largeImageBytes)

	block, err := convertImageContent(ToolResultContent{Type: "image", Data: imageData, MimeType: "image/png"})
	require.NoError(t, err)

	img, ok := block.(message.ImageBlock)
	require.True(t, ok)
	assert.Equal(t, imageData, img.DataBase64)
	assert.Equal(t, "image/png", img.MimeType)
}

func BenchmarkConvertImageContent_Base64(b *testing.B) {
	imageData := "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="
	item := ToolResultContent{Type: "image", Data: imageData, MimeType: "image/png"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = convertImageContent(item)
	}
}

func BenchmarkConvertToolResultContent_MixedContent(b *testing.B) {
	imageData := "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="
	items := []ToolResultContent{
		{Type: "text", Text: "Here is the chart:"},
		{Type: "image", Data: imageData, MimeType: "image/png"},
		{Type: "text", Text: "Analysis complete."},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ConvertToolResultContent(items)
	}
}
