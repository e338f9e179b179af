// Package payload builds and decodes the base64 JSON bodies carried by
// gateway messages. The same decoding is applied to webhook notify items and
// to messages returned by history sync.
package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Message types accepted by the outbound pipeline.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
)

type textBody struct {
	Text string `json:"text"`
}

type mediaBody struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Build encodes a structured message body for the given type and returns it
// base64 encoded, ready for a gateway send.
func Build(msgType, content string) (string, error) {
	var body any
	switch msgType {
	case TypeText:
		body = textBody{Text: content}
	case TypeImage, TypeFile:
		body = mediaBody{URL: content, Type: msgType}
	default:
		return "", fmt.Errorf("unsupported message type %q", msgType)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ExtractContent decodes a base64 payload for display. A JSON object with a
// string "content" field yields that field; anything else falls back to the
// raw decoded text.
func ExtractContent(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		if content, ok := fields["content"].(string); ok && content != "" {
			return content, nil
		}
	}
	return string(raw), nil
}
