package mcp

import (
	"path"
	"strings"
)

// ContentBlock is one tagged content variant in tool results and prompt
// messages. Exactly the fields for the given Type are populated.
type ContentBlock struct {
	Type string `json:"type"` // text, image, audio, resource, file

	// text
	Text string `json:"text,omitempty"`

	// image / audio / file: base64 payload plus MIME type.
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// resource
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents carries resource data inline.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// TextContent builds a text block.
func TextContent(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageContent builds an image block from base64 data.
func ImageContent(data, mimeType string) ContentBlock {
	return ContentBlock{Type: "image", Data: data, MimeType: mimeType}
}

// AudioContent builds an audio block from base64 data.
func AudioContent(data, mimeType string) ContentBlock {
	return ContentBlock{Type: "audio", Data: data, MimeType: mimeType}
}

// EmbeddedResource builds a resource block.
func EmbeddedResource(uri, mimeType, text string) ContentBlock {
	return ContentBlock{
		Type:     "resource",
		Resource: &ResourceContents{URI: uri, MimeType: mimeType, Text: text},
	}
}

// FileContent builds an embedded file block, detecting the MIME type from
// the file name.
func FileContent(name, data string) ContentBlock {
	return ContentBlock{Type: "file", Data: data, MimeType: DetectMimeType(name)}
}

// mimeByExtension covers image, audio, video and common document types.
var mimeByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".pdf":  "application/pdf",
	".json": "application/json",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".parquet": "application/vnd.apache.parquet",
	".zip":  "application/zip",
}

// DetectMimeType maps a file extension to its MIME type, defaulting to
// application/octet-stream.
func DetectMimeType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if mt, ok := mimeByExtension[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
