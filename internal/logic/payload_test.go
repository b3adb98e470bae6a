package logic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

var testTools = []types.Function{{
	Type: "function",
	Function: types.FunctionDefinition{
		Name:        "browser_search",
		Description: "search",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	},
}}

func TestBuildPlainPayload_PatchesAndKeepsPassThrough(t *testing.T) {
	raw := []byte(`{"model":"gpt-4","messages":[],"temperature":0.2,"stream":false}`)
	msgs := []types.Message{{Role: types.RoleUser, Content: types.TextContent("a<b")}}

	out, err := BuildPlainPayload(raw, "gpt-4o-mini", msgs)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(out, "model").String())
	assert.True(t, gjson.GetBytes(out, "stream").Bool())
	assert.Equal(t, 0.2, gjson.GetBytes(out, "temperature").Float())
	assert.Equal(t, "a<b", gjson.GetBytes(out, "messages.0.content").String())
	assert.False(t, gjson.GetBytes(out, "tools").Exists())
}

func TestBuildProbePayload_AddsCatalogOnlyWhenAbsent(t *testing.T) {
	out, err := BuildProbePayload(nil, "m", nil, testTools)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(out, "stream").Bool())
	assert.Equal(t, "browser_search", gjson.GetBytes(out, "tools.0.function.name").String())
	assert.Equal(t, "auto", gjson.GetBytes(out, "tool_choice").String())
	assert.True(t, gjson.GetBytes(out, "parallel_tool_calls").Exists())
	assert.False(t, gjson.GetBytes(out, "parallel_tool_calls").Bool())

	own := []byte(`{"tools":[{"type":"function","function":{"name":"mine"}}]}`)
	out, err = BuildProbePayload(own, "m", nil, testTools)
	require.NoError(t, err)
	assert.Equal(t, "mine", gjson.GetBytes(out, "tools.0.function.name").String())
	assert.False(t, gjson.GetBytes(out, "tool_choice").Exists())

	streamed, err := WithStream(out, true)
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(streamed, "stream").Bool())
}

func TestBuildFollowUpPayload(t *testing.T) {
	out, err := BuildFollowUpPayload("m", []types.Message{{Role: types.RoleTool, ToolCallID: "c1", Content: types.TextContent("r")}})
	require.NoError(t, err)
	assert.Equal(t, "m", gjson.GetBytes(out, "model").String())
	assert.True(t, gjson.GetBytes(out, "stream").Bool())
	assert.Equal(t, "c1", gjson.GetBytes(out, "messages.0.tool_call_id").String())
}
