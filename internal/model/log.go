package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zgsm-ai/chat-proxy/internal/types"
)

const (
	PathPlain = "plain"
	PathTools = "tools"
)

type ToolCall struct {
	ToolName     string `json:"tool_name"`
	ResultStatus string `json:"result_status"`
	Latency      int64  `json:"latency"`
	Error        string `json:"error,omitempty"`
}

// ChatLog represents a single chat completion log entry
type ChatLog struct {
	Identity  Identity  `json:"identity"`
	Timestamp time.Time `json:"timestamp"`

	RequestedModel string `json:"requested_model"`
	Model          string `json:"model"`
	Path           string `json:"path"`
	Endpoint       string `json:"endpoint"`
	FinalState     string `json:"final_state,omitempty"`

	// History sizes before and after truncation
	OriginalMessages int `json:"original_messages"`
	KeptMessages     int `json:"kept_messages"`

	// Latency metrics (in milliseconds)
	FirstChunkLatency int64 `json:"first_chunk_latency_ms"`
	MainModelLatency  int64 `json:"main_model_latency_ms"`
	TotalLatency      int64 `json:"total_latency_ms"`
	ChunkCount        int   `json:"chunk_count"`

	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Latest user turn, persisted to the prompt store
	UserPrompt string   `json:"user_prompt,omitempty"`
	ImageURLs  []string `json:"image_urls,omitempty"`

	ResponseContent string      `json:"response_content,omitempty"`
	Usage           types.Usage `json:"usage,omitempty"`

	Error []map[types.ErrorType]string `json:"error,omitempty"`
}

// toStringJSON converts the log entry to indented JSON string
func (cl *ChatLog) toStringJSON(indent string) (string, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)
	if err := encoder.Encode(cl); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ToCompressedJSON converts the log entry to JSON string
func (cl *ChatLog) ToCompressedJSON() (string, error) {
	return cl.toStringJSON("")
}

func (cl *ChatLog) ToPrettyJSON() (string, error) {
	return cl.toStringJSON("  ")
}

// FromJSON creates a ChatLog from JSON string
func FromJSON(jsonStr string) (*ChatLog, error) {
	var log ChatLog
	if err := json.Unmarshal([]byte(jsonStr), &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// AddError adds an error entry with type and message to the ChatLog
func (cl *ChatLog) AddError(errorType types.ErrorType, err error) {
	if err == nil {
		return
	}
	cl.Error = append(cl.Error, map[types.ErrorType]string{
		errorType: err.Error(),
	})
}

// HasError reports whether any error was recorded
func (cl *ChatLog) HasError() bool {
	return len(cl.Error) > 0
}

// TruncateContent shortens s to at most maxRunes runes
func TruncateContent(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "..."
}
