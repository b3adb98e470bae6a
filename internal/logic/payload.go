package logic

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

const toolChoiceAuto = "auto"

// Upstream payloads are patched onto the client's raw body so that fields
// the proxy does not model (temperature, top_p, user...) pass through.

func basePayload(raw []byte, model string, messages []types.Message) ([]byte, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		raw = []byte("{}")
	}
	msgs, err := types.MarshalJSONWithoutEscape(messages)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	out, err := sjson.SetBytes(raw, "model", model)
	if err != nil {
		return nil, fmt.Errorf("set model: %w", err)
	}
	out, err = sjson.SetRawBytes(out, "messages", msgs)
	if err != nil {
		return nil, fmt.Errorf("set messages: %w", err)
	}
	return out, nil
}

// BuildPlainPayload is the single streaming call of the plain path
func BuildPlainPayload(raw []byte, model string, messages []types.Message) ([]byte, error) {
	out, err := basePayload(raw, model, messages)
	if err != nil {
		return nil, err
	}
	return WithStream(out, true)
}

// BuildProbePayload is the non-streaming tool probe. The catalog is only
// added when the client did not send its own tools.
func BuildProbePayload(raw []byte, model string, messages []types.Message, tools []types.Function) ([]byte, error) {
	out, err := basePayload(raw, model, messages)
	if err != nil {
		return nil, err
	}
	if out, err = WithStream(out, false); err != nil {
		return nil, err
	}
	if gjson.GetBytes(out, "tools").Exists() || len(tools) == 0 {
		return out, nil
	}

	catalog, err := json.Marshal(tools)
	if err != nil {
		return nil, fmt.Errorf("marshal tools: %w", err)
	}
	if out, err = sjson.SetRawBytes(out, "tools", catalog); err != nil {
		return nil, fmt.Errorf("set tools: %w", err)
	}
	if out, err = sjson.SetBytes(out, "tool_choice", toolChoiceAuto); err != nil {
		return nil, fmt.Errorf("set tool_choice: %w", err)
	}
	if out, err = sjson.SetBytes(out, "parallel_tool_calls", false); err != nil {
		return nil, fmt.Errorf("set parallel_tool_calls: %w", err)
	}
	return out, nil
}

// WithStream sets the stream flag on an already built payload
func WithStream(payload []byte, stream bool) ([]byte, error) {
	out, err := sjson.SetBytes(payload, "stream", stream)
	if err != nil {
		return nil, fmt.Errorf("set stream: %w", err)
	}
	return out, nil
}

// BuildFollowUpPayload is the streaming call made after tool execution
func BuildFollowUpPayload(model string, messages []types.Message) ([]byte, error) {
	data, err := types.MarshalJSONWithoutEscape(types.ChatLLMRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal follow-up request: %w", err)
	}
	return data, nil
}
