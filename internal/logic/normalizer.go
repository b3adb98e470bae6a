package logic

import (
	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// NormalizeChunk rewrites one upstream frame into the canonical single-choice
// chunk. The first chunk of a stream always announces the assistant role,
// even when it already carries finish_reason "stop".
func NormalizeChunk(raw gjson.Result, isFirst bool) types.StreamChunk {
	chunk := types.StreamChunk{
		ID:                raw.Get("id").String(),
		Object:            types.ChunkObject,
		Created:           raw.Get("created").Int(),
		Model:             raw.Get("model").String(),
		SystemFingerprint: raw.Get("system_fingerprint").String(),
	}

	choice := raw.Get("choices.0")
	var finish *string
	if fr := choice.Get("finish_reason"); fr.Exists() && fr.Type != gjson.Null {
		s := fr.String()
		finish = &s
	}
	content := choice.Get("delta.content").String()

	var delta types.ChunkDelta
	switch {
	case !choice.Exists():
		// no choices, delta stays empty
	case isFirst:
		delta = types.ChunkDelta{Role: types.RoleAssistant, Content: &content}
	case finish != nil && *finish == types.FinishReasonStop:
		// termination only, content was already delivered
	default:
		delta = types.ChunkDelta{Content: &content}
	}

	chunk.Choices = []types.ChunkChoice{{
		Index:        0,
		Delta:        delta,
		FinishReason: finish,
	}}
	return chunk
}
