package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// RoleSystem System role message
	RoleSystem = "system"

	// RoleUser User role message
	RoleUser = "user"

	// RoleTool Tool role message
	RoleTool = "tool"

	// RoleAssistant AI assistant role message
	RoleAssistant = "assistant"
)

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
	ContentTypeDocument = "document"
)

const (
	// Request Headers
	HeaderRequestId     = "x-request-id"
	HeaderAppVersion    = "X-App-Version"
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "x-api-key"
)

// ToolStatus defines the status of the tool
type ToolStatus string

const (
	ToolStatusRunning ToolStatus = "running"
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusFailed  ToolStatus = "failed"
)

// Redis key prefix for tool status
const ToolStatusRedisKeyPrefix = "tool_status:"

// ImageURL is the payload of an image_url content part
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of a multi-part message: text, image_url or document.
// Document parts carry text that was already extracted from an uploaded file.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentTypeImageURL, ImageURL: &ImageURL{URL: url}}
}

func DocumentPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeDocument, Text: text}
}

// IsTextual reports whether the part is charged against the token budget
func (p ContentPart) IsTextual() bool {
	return p.Type == ContentTypeText || p.Type == ContentTypeDocument
}

// Content is either plain text or an ordered list of parts.
// A non-nil Parts slice means the list form, even when empty.
type Content struct {
	Text  string
	Parts []ContentPart
}

func TextContent(text string) Content {
	return Content{Text: text}
}

func PartsContent(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// IsParts reports whether the content is in list form
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// Clone returns a copy whose parts can be modified without touching c
func (c Content) Clone() Content {
	if c.Parts == nil {
		return Content{Text: c.Text}
	}
	parts := make([]ContentPart, len(c.Parts))
	for i, p := range c.Parts {
		if p.ImageURL != nil {
			img := *p.ImageURL
			p.ImageURL = &img
		}
		parts[i] = p
	}
	return Content{Parts: parts}
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return marshalJSONWithoutEscape(c.Parts)
	}
	return marshalJSONWithoutEscape(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = Content{}
		return nil
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	case trimmed[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of parts")
	}
}

// FunctionCall is the function half of a tool call; Arguments is a JSON object as text
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model-initiated request to invoke a function
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type Message struct {
	Role       string     `json:"role"`
	Content    Content    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`

	// Extra fields for transparent passthrough of unknown fields
	Extra map[string]any `json:"-"`
}

// Clone returns a deep copy of the message content so truncation can edit it
func (m Message) Clone() Message {
	m.Content = m.Content.Clone()
	if m.ToolCalls != nil {
		m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return m
}

// UnmarshalJSON implements custom JSON unmarshaling to capture unknown fields
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message{}
	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &m.Role); err != nil {
			return fmt.Errorf("invalid role: %w", err)
		}
		delete(raw, "role")
	}
	if v, ok := raw["content"]; ok {
		if err := json.Unmarshal(v, &m.Content); err != nil {
			return fmt.Errorf("invalid content: %w", err)
		}
		delete(raw, "content")
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &m.Name)
		delete(raw, "name")
	}
	if v, ok := raw["tool_call_id"]; ok {
		_ = json.Unmarshal(v, &m.ToolCallID)
		delete(raw, "tool_call_id")
	}
	if v, ok := raw["tool_calls"]; ok {
		if err := json.Unmarshal(v, &m.ToolCalls); err != nil {
			return fmt.Errorf("invalid tool_calls: %w", err)
		}
		delete(raw, "tool_calls")
	}

	if len(raw) > 0 {
		m.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var value any
			if err := json.Unmarshal(v, &value); err == nil {
				m.Extra[k] = value
			}
		}
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling to include Extra fields
func (m Message) MarshalJSON() ([]byte, error) {
	result := make(map[string]any, len(m.Extra)+5)
	for k, v := range m.Extra {
		result[k] = v
	}

	result["role"] = m.Role
	result["content"] = m.Content
	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.ToolCallID != "" {
		result["tool_call_id"] = m.ToolCallID
	}
	if len(m.ToolCalls) > 0 {
		result["tool_calls"] = m.ToolCalls
	}

	return marshalJSONWithoutEscape(result)
}

// ChatCompletionRequest is the inbound body. Fields other than model and
// messages are forwarded upstream untouched from the raw body.
type ChatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// ChatLLMRequest is the body of the second, tool-result-aware upstream call
type ChatLLMRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Function is the tool catalog entry sent upstream
type Function struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolStatusResponse defines tool status response structure
type ToolStatusResponse struct {
	Code    int            `json:"code"`
	Data    ToolStatusData `json:"data"`
	Message string         `json:"message"`
}

// ToolStatusData defines tool status data structure
type ToolStatusData struct {
	Tools map[string]ToolStatusDetail `json:"tools,omitempty"`
}

// ToolStatusDetail defines tool status detail structure
type ToolStatusDetail struct {
	Status string `json:"status"`
}

// MarshalJSONWithoutEscape marshals JSON without HTML escaping
func MarshalJSONWithoutEscape(v any) ([]byte, error) {
	return marshalJSONWithoutEscape(v)
}

// marshalJSONWithoutEscape marshals JSON without HTML escaping
func marshalJSONWithoutEscape(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	// Remove the trailing newline added by Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
