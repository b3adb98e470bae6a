package logic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
	"github.com/zgsm-ai/chat-proxy/internal/client"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	functionsmocks "github.com/zgsm-ai/chat-proxy/internal/functions/mocks"
	"github.com/zgsm-ai/chat-proxy/internal/model"
	"github.com/zgsm-ai/chat-proxy/internal/promptflow"
	"github.com/zgsm-ai/chat-proxy/internal/router/strategies/priority"
	storemocks "github.com/zgsm-ai/chat-proxy/internal/store/mocks"
	"github.com/zgsm-ai/chat-proxy/internal/tokenizer"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

type capturedLogs struct {
	mu   sync.Mutex
	logs []*model.ChatLog
}

func (c *capturedLogs) Start() error { return nil }
func (c *capturedLogs) Stop()        {}

func (c *capturedLogs) LogAsync(log *model.ChatLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, log)
}

// fakeUpstream answers probes with probeBody and streaming calls with
// streamBody, or with status when it is not 200
type fakeUpstream struct {
	mu         sync.Mutex
	status     int
	probeBody  string
	streamBody string
	bodies     []string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(data))
	f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		http.Error(w, `{"error":{"message":"boom"}}`, f.status)
		return
	}
	if !gjson.GetBytes(data, "stream").Bool() {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, f.probeBody)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, f.streamBody)
}

const twoPlusTwoStream = "data: {\"id\":\"u1\",\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"4\"},\"finish_reason\":null}]}\n\n" +
	"data: {\"id\":\"u1\",\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
	"data: [DONE]\n\n"

func newTestServiceContext(t *testing.T, upstreamURL string, st *storemocks.MockStore, executor *functionsmocks.MockToolExecutor, logs *capturedLogs) *bootstrap.ServiceContext {
	t.Helper()
	runner, err := priority.New([]config.EndpointConfig{
		{Name: "primary", BaseURL: upstreamURL, APIKey: "sk-test", Priority: 0},
	}, nil)
	require.NoError(t, err)

	policy := promptflow.NewModelPolicy(config.ModelsConfig{
		Default: config.ModelRoute{EffectiveModel: "gpt-4o-mini", PromptVariant: "default"},
	}, map[string]string{"default": "You are helpful."})
	counter := tokenizer.NewRuneCounter()

	return &bootstrap.ServiceContext{
		RedisClient:   client.NoopStatusStore{},
		HTTPClient:    http.DefaultClient,
		Store:         st,
		Router:        runner,
		Policy:        policy,
		Arranger:      promptflow.NewArranger(policy, promptflow.NewMessageTruncator(counter, 10000, 2000)),
		LoggerService: logs,
		TokenCounter:  counter,
		ToolExecutor:  executor,
	}
}

func twoPlusTwoRequest() *types.ChatCompletionRequest {
	return &types.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: types.TextContent("what is 2+2?")},
		},
		Stream: true,
	}
}

func runLogic(t *testing.T, svc *bootstrap.ServiceContext, headers http.Header) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := twoPlusTwoRequest()
	raw := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"what is 2+2?"}],"stream":true,"temperature":0.2}`)
	err := NewChatCompletionLogic(context.Background(), svc, &RequestContext{
		Request:  req,
		RawBody:  raw,
		Headers:  headers,
		Identity: model.Identity{RequestID: "req-42"},
		Writer:   rec,
	}).ChatCompletionStream()
	return rec, err
}

func TestChatCompletionStream_PlainPath(t *testing.T) {
	upstream := &fakeUpstream{streamBody: twoPlusTwoStream}
	server := httptest.NewServer(upstream)
	defer server.Close()

	ctrl := gomock.NewController(t)
	st := storemocks.NewMockStore(ctrl)
	st.EXPECT().RecordEndpointResult(gomock.Any(), "primary", http.StatusOK).Return(nil)
	logs := &capturedLogs{}
	svc := newTestServiceContext(t, server.URL, st, functionsmocks.NewMockToolExecutor(ctrl), logs)

	rec, err := runLogic(t, svc, http.Header{})
	require.NoError(t, err)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "4", gjson.Get(frames[0], "choices.0.delta.content").String())
	assert.Equal(t, types.ChunkObject, gjson.Get(frames[0], "object").String())
	assert.Equal(t, "stop", gjson.Get(frames[1], "choices.0.finish_reason").String())
	assert.Equal(t, types.StreamDoneSentinel, frames[2])

	require.Len(t, upstream.bodies, 1)
	sent := upstream.bodies[0]
	assert.Equal(t, "gpt-4o-mini", gjson.Get(sent, "model").String())
	assert.True(t, gjson.Get(sent, "stream").Bool())
	assert.Equal(t, 0.2, gjson.Get(sent, "temperature").Float())
	assert.Equal(t, "system", gjson.Get(sent, "messages.0.role").String())
	assert.Equal(t, "You are helpful.", gjson.Get(sent, "messages.0.content").String())
	assert.Equal(t, "what is 2+2?", gjson.Get(sent, "messages.1.content").String())

	require.Len(t, logs.logs, 1)
	chatLog := logs.logs[0]
	assert.Equal(t, model.PathPlain, chatLog.Path)
	assert.Equal(t, "primary", chatLog.Endpoint)
	assert.Equal(t, "gpt-4o", chatLog.RequestedModel)
	assert.Equal(t, "gpt-4o-mini", chatLog.Model)
	assert.Equal(t, "DONE", chatLog.FinalState)
	assert.Equal(t, "what is 2+2?", chatLog.UserPrompt)
	assert.Equal(t, "4", chatLog.ResponseContent)
	assert.Equal(t, 2, chatLog.ChunkCount)
	assert.Equal(t, 1, chatLog.Usage.CompletionTokens)
	assert.Positive(t, chatLog.Usage.PromptTokens)
	assert.False(t, chatLog.HasError())
}

func TestChatCompletionStream_UpstreamErrorSendsGenericFrame(t *testing.T) {
	upstream := &fakeUpstream{status: http.StatusServiceUnavailable}
	server := httptest.NewServer(upstream)
	defer server.Close()

	ctrl := gomock.NewController(t)
	st := storemocks.NewMockStore(ctrl)
	st.EXPECT().RecordEndpointResult(gomock.Any(), "primary", http.StatusServiceUnavailable).Return(nil)
	logs := &capturedLogs{}
	svc := newTestServiceContext(t, server.URL, st, functionsmocks.NewMockToolExecutor(ctrl), logs)

	rec, err := runLogic(t, svc, http.Header{})
	require.Error(t, err)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, types.ErrMsgGeneric, gjson.Get(frames[0], "error").String())
	assert.Equal(t, types.StreamDoneSentinel, frames[1])

	require.Len(t, logs.logs, 1)
	assert.Equal(t, "FAILED", logs.logs[0].FinalState)
	assert.True(t, logs.logs[0].HasError())
}

func TestChatCompletionStream_AppVersionSelectsToolPath(t *testing.T) {
	upstream := &fakeUpstream{
		probeBody:  `{"choices":[{"message":{"role":"assistant","content":"4"},"finish_reason":"stop"}]}`,
		streamBody: twoPlusTwoStream,
	}
	server := httptest.NewServer(upstream)
	defer server.Close()

	ctrl := gomock.NewController(t)
	st := storemocks.NewMockStore(ctrl)
	st.EXPECT().RecordEndpointResult(gomock.Any(), "primary", http.StatusOK).Return(nil)
	executor := functionsmocks.NewMockToolExecutor(ctrl)
	executor.EXPECT().Definitions().Return(testTools)
	logs := &capturedLogs{}
	svc := newTestServiceContext(t, server.URL, st, executor, logs)

	headers := http.Header{}
	headers.Set(types.HeaderAppVersion, "2.0")
	rec, err := runLogic(t, svc, headers)
	require.NoError(t, err)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, types.StreamDoneSentinel, frames[2])

	require.Len(t, upstream.bodies, 2)
	assert.False(t, gjson.Get(upstream.bodies[0], "stream").Bool())
	assert.Equal(t, "auto", gjson.Get(upstream.bodies[0], "tool_choice").String())
	assert.True(t, gjson.Get(upstream.bodies[1], "stream").Bool())

	require.Len(t, logs.logs, 1)
	assert.Equal(t, model.PathTools, logs.logs[0].Path)
	assert.Equal(t, "DONE", logs.logs[0].FinalState)
}

func TestChatCompletionStream_EmptyHistoryForwardsSystemPrompt(t *testing.T) {
	upstream := &fakeUpstream{streamBody: twoPlusTwoStream}
	server := httptest.NewServer(upstream)
	defer server.Close()

	ctrl := gomock.NewController(t)
	st := storemocks.NewMockStore(ctrl)
	st.EXPECT().RecordEndpointResult(gomock.Any(), "primary", http.StatusOK).Return(nil)
	logs := &capturedLogs{}
	svc := newTestServiceContext(t, server.URL, st, functionsmocks.NewMockToolExecutor(ctrl), logs)

	rec := httptest.NewRecorder()
	err := NewChatCompletionLogic(context.Background(), svc, &RequestContext{
		Request: &types.ChatCompletionRequest{Model: "gpt-4o", Messages: []types.Message{}},
		RawBody: []byte(`{"model":"gpt-4o","messages":[]}`),
		Headers: http.Header{},
		Writer:  rec,
	}).ChatCompletionStream()
	require.NoError(t, err)

	frames := sseFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, types.StreamDoneSentinel, frames[2])

	require.Len(t, upstream.bodies, 1)
	msgs := gjson.Get(upstream.bodies[0], "messages").Array()
	require.Len(t, msgs, 1)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "You are helpful.", msgs[0].Get("content").String())

	require.Len(t, logs.logs, 1)
	assert.Equal(t, 0, logs.logs[0].KeptMessages)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusOK, statusForError(nil))
	assert.Equal(t, http.StatusTooManyRequests, statusForError(fmt.Errorf("wrapped: %w", &types.UpstreamHTTPError{StatusCode: 429})))
	assert.Equal(t, http.StatusBadGateway, statusForError(&types.UpstreamTransportError{Err: io.ErrUnexpectedEOF}))
	assert.Equal(t, http.StatusInternalServerError, statusForError(fmt.Errorf("other")))
}
