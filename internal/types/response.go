package types

const (
	ChunkObject        = "chat.completion.chunk"
	FinishReasonStop   = "stop"
	StreamDoneSentinel = "[DONE]"
)

// StreamChunk is the canonical chunk shape emitted to clients
type StreamChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	SystemFingerprint string        `json:"system_fingerprint"`
	Choices           []ChunkChoice `json:"choices"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	Logprobs     any        `json:"logprobs"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta marshals to {} when both fields are unset
type ChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// FinishReason returns the first choice's finish reason, or ""
func (c StreamChunk) FinishReason() string {
	if len(c.Choices) == 0 || c.Choices[0].FinishReason == nil {
		return ""
	}
	return *c.Choices[0].FinishReason
}

// Client-visible event types interleaved with chunks on the tool-aware path
const (
	EventToolCall   = "tool_call"
	EventImageURL   = "image_url"
	EventToolStatus = "tool_status"
)

// ToolCallEvent announces a tool before it runs
type ToolCallEvent struct {
	Type string `json:"type"`
	Tool string `json:"tool"`
	Size string `json:"size,omitempty"`
}

// ImageEvent carries generated image data straight to the client
type ImageEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ToolStatusEvent summarizes a finished tool
type ToolStatusEvent struct {
	Type    string `json:"type"`
	Tool    string `json:"tool"`
	Details string `json:"details"`
}

// ErrorFrame is the single user-safe error frame sent before the sentinel
type ErrorFrame struct {
	Error string `json:"error"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UpstreamTarget is the chat endpoint chosen for one request
type UpstreamTarget struct {
	Name     string
	BaseURL  string
	APIKey   string
	Priority int
}
