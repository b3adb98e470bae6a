package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

func TestNormalizeChunk_FirstChunkAnnouncesRoleEvenOnStop(t *testing.T) {
	raw := gjson.Parse(`{"id":"c1","created":7,"model":"m","system_fingerprint":"fp","choices":[{"delta":{"content":"hi"},"finish_reason":"stop"}]}`)
	chunk := NormalizeChunk(raw, true)

	assert.Equal(t, "c1", chunk.ID)
	assert.Equal(t, int64(7), chunk.Created)
	assert.Equal(t, "fp", chunk.SystemFingerprint)
	assert.Equal(t, types.ChunkObject, chunk.Object)
	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, types.RoleAssistant, chunk.Choices[0].Delta.Role)
	require.NotNil(t, chunk.Choices[0].Delta.Content)
	assert.Equal(t, "hi", *chunk.Choices[0].Delta.Content)
	assert.Equal(t, types.FinishReasonStop, chunk.FinishReason())
}

func TestNormalizeChunk_StopChunkHasEmptyDelta(t *testing.T) {
	raw := gjson.Parse(`{"choices":[{"delta":{"content":"ignored"},"finish_reason":"stop"}]}`)
	chunk := NormalizeChunk(raw, false)

	data, err := types.MarshalJSONWithoutEscape(chunk)
	require.NoError(t, err)
	assert.Equal(t, "{}", gjson.GetBytes(data, "choices.0.delta").Raw)
	assert.Equal(t, "stop", gjson.GetBytes(data, "choices.0.finish_reason").String())
	assert.Equal(t, "", gjson.GetBytes(data, "id").String())
	assert.Equal(t, int64(0), gjson.GetBytes(data, "created").Int())
}

func TestNormalizeChunk_ContentOnlyAndOtherFinishReasons(t *testing.T) {
	chunk := NormalizeChunk(gjson.Parse(`{"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`), false)
	require.NotNil(t, chunk.Choices[0].Delta.Content)
	assert.Equal(t, "", *chunk.Choices[0].Delta.Content)
	assert.Empty(t, chunk.Choices[0].Delta.Role)
	assert.Nil(t, chunk.Choices[0].FinishReason)

	chunk = NormalizeChunk(gjson.Parse(`{"choices":[{"delta":{"content":"x"},"finish_reason":"length"}]}`), false)
	assert.Equal(t, "x", *chunk.Choices[0].Delta.Content)
	assert.Equal(t, "length", chunk.FinishReason())
}

func TestNormalizeChunk_MissingChoices(t *testing.T) {
	chunk := NormalizeChunk(gjson.Parse(`{"id":"x"}`), false)
	require.Len(t, chunk.Choices, 1)
	assert.Nil(t, chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Choices[0].FinishReason)

	first := NormalizeChunk(gjson.Parse(`{"id":"x","usage":{"total_tokens":3}}`), true)
	require.Len(t, first.Choices, 1)
	assert.Empty(t, first.Choices[0].Delta.Role)
	assert.Nil(t, first.Choices[0].Delta.Content)
}
