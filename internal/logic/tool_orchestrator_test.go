package logic

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/functions/mocks"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

const finalStream = "data: {\"id\":\"s1\",\"choices\":[{\"delta\":{\"content\":\"Here\"},\"finish_reason\":null}]}\n\n" +
	"data: {\"id\":\"s1\",\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"

type fakeChat struct {
	probeBody []byte
	probeErr  error
	stream    string
	streamErr error

	probePayloads  [][]byte
	streamPayloads [][]byte
}

func (f *fakeChat) ChatCompletion(_ context.Context, body []byte) ([]byte, error) {
	f.probePayloads = append(f.probePayloads, body)
	return f.probeBody, f.probeErr
}

func (f *fakeChat) ChatCompletionStream(_ context.Context, body []byte) (io.ReadCloser, error) {
	f.streamPayloads = append(f.streamPayloads, body)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

type statusCall struct {
	tool   string
	status types.ToolStatus
}

type recordingStatus struct {
	mu    sync.Mutex
	calls []statusCall
}

func (r *recordingStatus) SetToolStatus(_ context.Context, _ string, tool string, status types.ToolStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, statusCall{tool, status})
	return nil
}

func (r *recordingStatus) GetHash(context.Context, string) (map[string]string, error) {
	return nil, nil
}

func (r *recordingStatus) Close() error { return nil }

func probeWithCalls(calls string) []byte {
	return []byte(`{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":` + calls + `},"finish_reason":"tool_calls"}]}`)
}

func baseToolRequest() ToolRequest {
	return ToolRequest{
		RequestID: "req-1",
		Model:     "gpt-4o-mini",
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: types.TextContent("sys")},
			{Role: types.RoleUser, Content: types.TextContent("draw a cat")},
		},
	}
}

func TestToolOrchestrator_DalleSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockToolExecutor(ctrl)
	executor.EXPECT().Definitions().Return(testTools)
	executor.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, call types.ToolCall) (string, error) {
			assert.Equal(t, "dalle", call.Function.Name)
			return "data:image/png;base64,AAAA", nil
		})

	chat := &fakeChat{
		probeBody: probeWithCalls(`[{"id":"call_1","type":"function","function":{"name":"dalle","arguments":"{\"prompt\":\"cat\",\"size\":\"512x512\"}"}}]`),
		stream:    finalStream,
	}
	status := &recordingStatus{}
	rec := httptest.NewRecorder()

	out := NewToolOrchestrator(chat, executor, status).Run(context.Background(), baseToolRequest(), NewSSEWriter(rec))
	require.NoError(t, out.Err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, []ToolState{StateProbe, StateToolsFound, StateExecuting, StateSecondCall, StateStreamFinal, StateDone}, out.States)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 5)
	assert.Equal(t, types.EventToolCall, frameType(frames[0]))
	assert.Equal(t, "dalle", gjson.Get(frames[0], "tool").String())
	assert.Equal(t, "512x512", gjson.Get(frames[0], "size").String())
	assert.Equal(t, types.EventImageURL, frameType(frames[1]))
	assert.Equal(t, "data:image/png;base64,AAAA", gjson.Get(frames[1], "data").String())
	assert.Equal(t, "assistant", gjson.Get(frames[2], "choices.0.delta.role").String())
	assert.Equal(t, "stop", gjson.Get(frames[3], "choices.0.finish_reason").String())
	assert.Equal(t, types.StreamDoneSentinel, frames[4])

	require.Len(t, chat.streamPayloads, 1)
	followUp := chat.streamPayloads[0]
	assert.True(t, gjson.GetBytes(followUp, "stream").Bool())
	assert.Equal(t, "gpt-4o-mini", gjson.GetBytes(followUp, "model").String())
	msgs := gjson.GetBytes(followUp, "messages").Array()
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "call_1", msgs[2].Get("tool_calls.0.id").String())
	assert.Equal(t, "tool", msgs[3].Get("role").String())
	assert.Equal(t, "call_1", msgs[3].Get("tool_call_id").String())
	assert.Equal(t, imagePlaceholder, msgs[3].Get("content").String())
	assert.Equal(t, "user", msgs[4].Get("role").String())
	assert.Equal(t, imageInstruction, msgs[4].Get("content").String())

	assert.Equal(t, []statusCall{
		{"dalle", types.ToolStatusRunning},
		{"dalle", types.ToolStatusSuccess},
	}, status.calls)
}

func TestToolOrchestrator_ContentPolicyMakesNoSecondCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockToolExecutor(ctrl)
	executor.EXPECT().Definitions().Return(testTools)

	chat := &fakeChat{probeErr: &types.UpstreamHTTPError{
		StatusCode: 400,
		Body:       `{"error":{"message":"The response was filtered due to the prompt triggering Azure OpenAI's Content Management Policy."}}`,
	}}
	rec := httptest.NewRecorder()

	out := NewToolOrchestrator(chat, executor, nil).Run(context.Background(), baseToolRequest(), NewSSEWriter(rec))
	assert.Equal(t, StateDone, out.State)
	assert.True(t, types.IsContentPolicyError(out.Err))
	assert.Empty(t, chat.streamPayloads)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "assistant", gjson.Get(frames[0], "choices.0.delta.role").String())
	assert.Equal(t, types.ErrMsgContentPolicy, gjson.Get(frames[0], "choices.0.delta.content").String())
	assert.Equal(t, gjson.Get(frames[0], "id").String(), gjson.Get(frames[1], "id").String())
	assert.True(t, strings.HasPrefix(gjson.Get(frames[0], "id").String(), "chatcmpl-"))
	assert.Equal(t, "{}", gjson.Get(frames[1], "choices.0.delta").Raw)
	assert.Equal(t, "stop", gjson.Get(frames[1], "choices.0.finish_reason").String())
	assert.Equal(t, types.StreamDoneSentinel, frames[2])
}

func TestToolOrchestrator_NoToolsStreamsSamePayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockToolExecutor(ctrl)
	executor.EXPECT().Definitions().Return(testTools)

	chat := &fakeChat{
		probeBody: []byte(`{"choices":[{"message":{"role":"assistant","content":"4"},"finish_reason":"stop"}]}`),
		stream:    finalStream,
	}
	rec := httptest.NewRecorder()

	out := NewToolOrchestrator(chat, executor, nil).Run(context.Background(), baseToolRequest(), NewSSEWriter(rec))
	require.NoError(t, out.Err)
	assert.Contains(t, out.States, StateNoTools)

	require.Len(t, chat.probePayloads, 1)
	require.Len(t, chat.streamPayloads, 1)
	probe, stream := chat.probePayloads[0], chat.streamPayloads[0]
	assert.False(t, gjson.GetBytes(probe, "stream").Bool())
	assert.True(t, gjson.GetBytes(stream, "stream").Bool())
	assert.Equal(t, gjson.GetBytes(probe, "tools").Raw, gjson.GetBytes(stream, "tools").Raw)
	assert.Equal(t, gjson.GetBytes(probe, "messages").Raw, gjson.GetBytes(stream, "messages").Raw)

	frames := sseFrames(t, rec.Body.String())
	assert.Len(t, frames, 3)
}

func TestToolOrchestrator_ToolFailureDoesNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockToolExecutor(ctrl)
	executor.EXPECT().Definitions().Return(testTools)
	gomock.InOrder(
		executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return("Search Results:\n\n...", nil),
		executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return("", &types.ToolExecutionError{Tool: "open_url", Err: errors.New("404")}),
	)

	chat := &fakeChat{
		probeBody: probeWithCalls(`[
			{"id":"c1","type":"function","function":{"name":"browser_search","arguments":"{\"query\":\"go\",\"max_results\":5}"}},
			{"id":"c2","type":"function","function":{"name":"open_url","arguments":"{\"url\":\"https://example.com/a/very/long/path\"}"}}
		]`),
		stream: finalStream,
	}
	status := &recordingStatus{}
	rec := httptest.NewRecorder()

	out := NewToolOrchestrator(chat, executor, status).Run(context.Background(), baseToolRequest(), NewSSEWriter(rec))
	require.NoError(t, out.Err)
	require.Len(t, out.Calls, 2)
	assert.NoError(t, out.Calls[0].Err)
	assert.Error(t, out.Calls[1].Err)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 7)
	assert.Equal(t, "browser_search", gjson.Get(frames[0], "tool").String())
	assert.False(t, gjson.Get(frames[0], "size").Exists())
	assert.Equal(t, "open_url", gjson.Get(frames[1], "tool").String())
	assert.Equal(t, types.EventToolStatus, frameType(frames[2]))
	assert.Equal(t, "Searched 5 sites", gjson.Get(frames[2], "details").String())
	assert.Equal(t, "Reading https://example.com/...", gjson.Get(frames[3], "details").String())
	assert.Equal(t, types.StreamDoneSentinel, frames[6])

	msgs := gjson.GetBytes(chat.streamPayloads[0], "messages").Array()
	require.Len(t, msgs, 5)
	assert.Equal(t, "Search Results:\n\n...", msgs[3].Get("content").String())
	assert.True(t, strings.HasPrefix(msgs[4].Get("content").String(), "Error: "))
	assert.Equal(t, "c2", msgs[4].Get("tool_call_id").String())

	assert.Equal(t, []statusCall{
		{"browser_search", types.ToolStatusRunning},
		{"browser_search", types.ToolStatusSuccess},
		{"open_url", types.ToolStatusRunning},
		{"open_url", types.ToolStatusFailed},
	}, status.calls)
}

func TestToolOrchestrator_FailuresEndWithGenericError(t *testing.T) {
	cases := map[string]*fakeChat{
		"probe http error": {probeErr: &types.UpstreamHTTPError{StatusCode: 500, Body: "internal detail"}},
		"probe transport":  {probeErr: &types.UpstreamTransportError{Err: errors.New("dial tcp")}},
		"malformed probe":  {probeBody: []byte("<html>")},
		"stream failure": {
			probeBody: []byte(`{"choices":[{"message":{"role":"assistant","content":"x"}}]}`),
			streamErr: &types.UpstreamTransportError{Err: errors.New("timeout")},
		},
	}

	for name, chat := range cases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			executor := mocks.NewMockToolExecutor(ctrl)
			executor.EXPECT().Definitions().Return(testTools)
			rec := httptest.NewRecorder()

			out := NewToolOrchestrator(chat, executor, nil).Run(context.Background(), baseToolRequest(), NewSSEWriter(rec))
			assert.Equal(t, StateFailed, out.State)
			assert.Error(t, out.Err)

			frames := sseFrames(t, rec.Body.String())
			require.Len(t, frames, 2)
			assert.Equal(t, types.ErrMsgGeneric, gjson.Get(frames[0], "error").String())
			assert.NotContains(t, frames[0], "internal detail")
			assert.Equal(t, types.StreamDoneSentinel, frames[1])
		})
	}
}

func TestShortenURL(t *testing.T) {
	assert.Equal(t, "https://a.io", shortenURL("https://a.io"))
	assert.Equal(t, "12345678901234567890", shortenURL("12345678901234567890"))
	assert.Equal(t, "12345678901234567890...", shortenURL("123456789012345678901"))
}
