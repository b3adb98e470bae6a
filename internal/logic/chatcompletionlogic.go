package logic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
	"github.com/zgsm-ai/chat-proxy/internal/client"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/model"
	"github.com/zgsm-ai/chat-proxy/internal/promptflow/ds"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"github.com/zgsm-ai/chat-proxy/internal/utils"
	"go.uber.org/zap"
)

const (
	toolAppVersion       = "2.0"
	responseLogLimit     = 500
	endpointStatsTimeout = 5 * time.Second
)

// RequestContext is the inbound request as the handler parsed it
type RequestContext struct {
	Request *types.ChatCompletionRequest
	// RawBody is forwarded upstream with model, messages and stream patched
	RawBody  []byte
	Headers  http.Header
	Identity model.Identity
	Writer   http.ResponseWriter
}

// ChatCompletionLogic serves one streaming chat completion: it picks the
// endpoint, arranges the prompt and runs either the plain or the
// tool-aware path
type ChatCompletionLogic struct {
	ctx    context.Context
	svcCtx *bootstrap.ServiceContext
	reqCtx *RequestContext
	relay  *StreamRelay
}

func NewChatCompletionLogic(ctx context.Context, svcCtx *bootstrap.ServiceContext, reqCtx *RequestContext) *ChatCompletionLogic {
	return &ChatCompletionLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		reqCtx: reqCtx,
		relay:  NewStreamRelay(),
	}
}

func (l *ChatCompletionLogic) getRequest() *types.ChatCompletionRequest {
	return l.reqCtx.Request
}

// useTools selects the tool-aware path
func (l *ChatCompletionLogic) useTools() bool {
	return l.reqCtx.Headers.Get(types.HeaderAppVersion) == toolAppVersion || l.svcCtx.ToolsEnabled()
}

// ChatCompletionStream writes the whole SSE response. The stream always ends
// with the sentinel, including after a panic.
func (l *ChatCompletionLogic) ChatCompletionStream() (err error) {
	req := l.getRequest()
	sink := NewSSEWriter(l.reqCtx.Writer)
	chatLog := &model.ChatLog{
		Identity:         l.reqCtx.Identity,
		Timestamp:        time.Now(),
		RequestedModel:   req.Model,
		OriginalMessages: len(req.Messages),
		Path:             model.PathPlain,
	}
	if l.useTools() {
		chatLog.Path = model.PathTools
	}
	var target *types.UpstreamTarget

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in chat completion: %v", r)
			logger.ErrorC(l.ctx, "recovered from panic",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			chatLog.AddError(types.ErrServerError, err)
		}
		if !sink.Done() {
			if werr := sink.WriteError(); werr != nil {
				logger.WarnC(l.ctx, "failed to terminate stream", zap.Error(werr))
			}
		}
		if target != nil {
			l.recordEndpointResult(target.Name, err)
		}
		chatLog.TotalLatency = time.Since(chatLog.Timestamp).Milliseconds()
		l.svcCtx.LoggerService.LogAsync(chatLog)
	}()

	chatLog.UserPrompt, chatLog.ImageURLs = utils.ExtractLatestUserContent(req.Messages)

	// the target is captured before anything else can fail so failures are
	// always attributed to it
	target, err = l.svcCtx.Router.Select(l.ctx)
	if err != nil {
		target = nil
		chatLog.AddError(types.ErrServerError, err)
		return fmt.Errorf("select endpoint: %w", err)
	}
	chatLog.Endpoint = target.Name

	chatClient, err := l.svcCtx.NewChatClient(*target)
	if err != nil {
		chatLog.AddError(types.ErrServerError, err)
		return fmt.Errorf("create chat client: %w", err)
	}

	prompt := l.svcCtx.Arranger.Arrange(req.Model, req.Messages)
	chatLog.Model = prompt.EffectiveModel
	chatLog.KeptMessages = prompt.KeptCount

	logger.InfoC(l.ctx, "chat completion started",
		zap.String("path", chatLog.Path),
		zap.String("requestedModel", req.Model),
		zap.String("model", prompt.EffectiveModel),
		zap.String("endpoint", target.Name),
		zap.Int("messages", len(req.Messages)),
		zap.Int("kept", prompt.KeptCount),
	)

	if chatLog.Path == model.PathTools {
		return l.runToolPath(chatClient, prompt, sink, chatLog)
	}
	return l.runPlainPath(chatClient, prompt, sink, chatLog)
}

func (l *ChatCompletionLogic) runPlainPath(chatClient client.ChatClient, prompt *ds.ProcessedPrompt, sink EventSink, chatLog *model.ChatLog) error {
	payload, err := BuildPlainPayload(l.reqCtx.RawBody, prompt.EffectiveModel, prompt.Messages)
	if err != nil {
		chatLog.AddError(types.ErrServerError, err)
		return err
	}

	modelStart := time.Now()
	stream, err := chatClient.ChatCompletionStream(l.ctx, payload)
	if err != nil {
		errType := types.ClassifyError(err)
		logger.ErrorC(l.ctx, "upstream streaming call failed",
			zap.String("errorType", string(errType)),
			zap.Error(err),
		)
		chatLog.AddError(errType, err)
		chatLog.FinalState = StateFailed.String()
		_ = sink.WriteError()
		return err
	}
	defer stream.Close()

	result := l.relay.Relay(l.ctx, stream, sink)
	chatLog.MainModelLatency = time.Since(modelStart).Milliseconds()
	l.applyRelayResult(chatLog, prompt, result)
	if result.Err != nil {
		chatLog.AddError(types.ClassifyError(result.Err), result.Err)
		chatLog.FinalState = StateFailed.String()
		return result.Err
	}
	chatLog.FinalState = StateDone.String()
	return nil
}

func (l *ChatCompletionLogic) runToolPath(chatClient client.ChatClient, prompt *ds.ProcessedPrompt, sink EventSink, chatLog *model.ChatLog) error {
	orchestrator := NewToolOrchestrator(chatClient, l.svcCtx.ToolExecutor, l.svcCtx.RedisClient)

	modelStart := time.Now()
	outcome := orchestrator.Run(l.ctx, ToolRequest{
		RequestID: l.reqCtx.Identity.RequestID,
		RawBody:   l.reqCtx.RawBody,
		Model:     prompt.EffectiveModel,
		Messages:  prompt.Messages,
	}, sink)
	chatLog.MainModelLatency = time.Since(modelStart).Milliseconds()

	chatLog.FinalState = outcome.State.String()
	for _, call := range outcome.Calls {
		entry := model.ToolCall{
			ToolName:     call.Tool,
			ResultStatus: string(types.ToolStatusSuccess),
			Latency:      call.Latency.Milliseconds(),
		}
		if call.Err != nil {
			entry.ResultStatus = string(types.ToolStatusFailed)
			entry.Error = call.Err.Error()
			chatLog.AddError(types.ErrToolExecution, call.Err)
		}
		chatLog.ToolCalls = append(chatLog.ToolCalls, entry)
	}
	l.applyRelayResult(chatLog, prompt, outcome.Relay)

	if outcome.Err != nil {
		chatLog.AddError(types.ClassifyError(outcome.Err), outcome.Err)
		return outcome.Err
	}
	return nil
}

func (l *ChatCompletionLogic) applyRelayResult(chatLog *model.ChatLog, prompt *ds.ProcessedPrompt, result RelayResult) {
	if result.Stats != nil {
		chatLog.ChunkCount = result.Stats.Count
		chatLog.FirstChunkLatency = result.Stats.TimeToFirst.Milliseconds()
	}
	chatLog.ResponseContent = model.TruncateContent(result.Content, responseLogLimit)
	if result.Usage != nil {
		chatLog.Usage = *result.Usage
		return
	}
	chatLog.Usage = l.calculateUsage(prompt, result.Content)
}

// calculateUsage estimates usage when the upstream did not report it
func (l *ChatCompletionLogic) calculateUsage(prompt *ds.ProcessedPrompt, responseContent string) types.Usage {
	counter := l.svcCtx.TokenCounter
	if counter == nil {
		return types.Usage{}
	}
	promptTokens := 0
	if data, err := types.MarshalJSONWithoutEscape(prompt.Messages); err == nil {
		promptTokens = counter.Count(string(data))
	}
	completionTokens := counter.Count(responseContent)
	return types.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func (l *ChatCompletionLogic) recordEndpointResult(name string, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), endpointStatsTimeout)
	defer cancel()
	if serr := l.svcCtx.Store.RecordEndpointResult(ctx, name, statusForError(err)); serr != nil {
		logger.WarnC(l.ctx, "failed to record endpoint result",
			zap.String("endpoint", name),
			zap.Error(serr),
		)
	}
}

// statusForError maps the outcome of a request onto an HTTP-like status for
// the endpoint statistics
func statusForError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var httpErr *types.UpstreamHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var transportErr *types.UpstreamTransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
