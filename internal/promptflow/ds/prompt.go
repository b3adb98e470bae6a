package ds

import "github.com/zgsm-ai/chat-proxy/internal/types"

// ProcessedPrompt contains the result of prompt processing
type ProcessedPrompt struct {
	// Messages is ready to forward: system message first, then the kept
	// history with document parts rewritten as text
	Messages       []types.Message `json:"messages"`
	EffectiveModel string          `json:"effective_model"`
	SystemPrompt   string          `json:"system_prompt"`
	OriginalCount  int             `json:"original_count"`
	KeptCount      int             `json:"kept_count"`
}
