package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zgsm-ai/chat-proxy/internal/client"
	"github.com/zgsm-ai/chat-proxy/internal/functions"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"github.com/zgsm-ai/chat-proxy/internal/utils"
	"go.uber.org/zap"
)

const (
	imageInstruction = "Please just give a sentence. Do not use any markdown and never say you cannot create images"
	urlDisplayLimit  = 20
)

// imagePlaceholder replaces the generated image in the tool result so the
// follow-up call does not carry the image payload again
const imagePlaceholder = `{"content":[{"type":"image_url","image_url":{"data":"image_already_sent"}}]}`

// ToolState is a step of the tool-aware completion
type ToolState int

const (
	StateProbe ToolState = iota
	StateNoTools
	StateToolsFound
	StateExecuting
	StateSecondCall
	StateStreamFinal
	StateDone
	StateFailed
)

func (s ToolState) String() string {
	switch s {
	case StateProbe:
		return "PROBE"
	case StateNoTools:
		return "NO_TOOLS"
	case StateToolsFound:
		return "TOOLS_FOUND"
	case StateExecuting:
		return "EXECUTING"
	case StateSecondCall:
		return "SECOND_CALL"
	case StateStreamFinal:
		return "STREAM_FINAL"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("ToolState(%d)", int(s))
	}
}

// ToolRequest is the already arranged input of the tool-aware path
type ToolRequest struct {
	RequestID string
	RawBody   []byte
	Model     string
	// Messages holds the system prompt followed by the truncated history
	Messages []types.Message
}

// ToolCallRecord is the outcome of one executed call
type ToolCallRecord struct {
	Tool    string
	Latency time.Duration
	Err     error
}

// ToolOutcome is the final state of one run. Err is set for FAILED runs and
// for content policy rejections, which still end in DONE.
type ToolOutcome struct {
	State  ToolState
	Calls  []ToolCallRecord
	Relay  RelayResult
	Err    error
	States []ToolState
}

func (o *ToolOutcome) enter(state ToolState) {
	o.State = state
	o.States = append(o.States, state)
}

// ToolOrchestrator runs the probe, executes requested tools one at a time
// and streams the follow-up answer
type ToolOrchestrator struct {
	chat     client.ChatClient
	executor functions.ToolExecutor
	status   client.RedisInterface
	relay    *StreamRelay
	now      func() time.Time
}

func NewToolOrchestrator(chat client.ChatClient, executor functions.ToolExecutor, status client.RedisInterface) *ToolOrchestrator {
	if status == nil {
		status = client.NoopStatusStore{}
	}
	return &ToolOrchestrator{
		chat:     chat,
		executor: executor,
		status:   status,
		relay:    NewStreamRelay(),
		now:      time.Now,
	}
}

// Run drives the state machine. The sink is terminated on every path.
func (o *ToolOrchestrator) Run(ctx context.Context, req ToolRequest, sink EventSink) ToolOutcome {
	var out ToolOutcome
	out.enter(StateProbe)

	payload, err := BuildProbePayload(req.RawBody, req.Model, req.Messages, o.executor.Definitions())
	if err != nil {
		return o.fail(ctx, sink, out, err)
	}

	body, err := o.chat.ChatCompletion(ctx, payload)
	if err != nil {
		if types.IsContentPolicyError(err) {
			logger.WarnC(ctx, "probe rejected by content policy", zap.Error(err))
			out.Err = err
			if werr := o.writeContentPolicyWarning(sink, req.Model); werr != nil {
				logger.WarnC(ctx, "failed to write content policy warning", zap.Error(werr))
			}
			out.enter(StateDone)
			return out
		}
		return o.fail(ctx, sink, out, fmt.Errorf("probe call: %w", err))
	}

	probe, err := client.ParseProbeResponse(body)
	if err != nil {
		return o.fail(ctx, sink, out, fmt.Errorf("parse probe response: %w", err))
	}

	if len(probe.ToolCalls) == 0 {
		out.enter(StateNoTools)
		streamPayload, err := WithStream(payload, true)
		if err != nil {
			return o.fail(ctx, sink, out, err)
		}
		return o.streamFinal(ctx, streamPayload, sink, out)
	}

	out.enter(StateToolsFound)
	var assistant types.Message
	if err := json.Unmarshal([]byte(probe.Message), &assistant); err != nil {
		return o.fail(ctx, sink, out, &types.MalformedFrameError{Data: probe.Message})
	}
	assistant.ToolCalls = probe.ToolCalls

	history := make([]types.Message, 0, len(req.Messages)+len(probe.ToolCalls)+2)
	history = append(history, req.Messages...)
	history = append(history, assistant)

	out.enter(StateExecuting)
	history, out.Calls = o.executeAll(ctx, req.RequestID, probe.ToolCalls, history, sink)

	out.enter(StateSecondCall)
	followUp, err := BuildFollowUpPayload(req.Model, utils.NormalizeDocuments(history))
	if err != nil {
		return o.fail(ctx, sink, out, err)
	}
	return o.streamFinal(ctx, followUp, sink, out)
}

func (o *ToolOrchestrator) executeAll(
	ctx context.Context,
	requestID string,
	calls []types.ToolCall,
	history []types.Message,
	sink EventSink,
) ([]types.Message, []ToolCallRecord) {
	records := make([]ToolCallRecord, 0, len(calls))
	usedImage := false

	for _, call := range calls {
		name := call.Function.Name
		kind, _ := functions.ParseToolKind(name)

		event := types.ToolCallEvent{Type: types.EventToolCall, Tool: name}
		if kind == functions.KindDalle {
			usedImage = true
			if args, err := functions.ParseDalleArgs(call.Function.Arguments); err == nil {
				event.Size = args.Size
			}
		}
		if err := sink.WriteEvent(event); err != nil {
			logger.WarnC(ctx, "failed to write tool_call event", zap.Error(err))
		}
		o.setStatus(ctx, requestID, name, types.ToolStatusRunning)

		start := o.now()
		result, err := o.executor.Execute(ctx, call)
		record := ToolCallRecord{Tool: name, Latency: o.now().Sub(start), Err: err}
		records = append(records, record)

		var content string
		switch {
		case err != nil:
			logger.ErrorC(ctx, "tool call failed",
				zap.String("tool", name),
				zap.Error(err),
			)
			content = "Error: " + err.Error()
			o.setStatus(ctx, requestID, name, types.ToolStatusFailed)
		case kind == functions.KindDalle:
			if werr := sink.WriteEvent(types.ImageEvent{Type: types.EventImageURL, Data: result}); werr != nil {
				logger.WarnC(ctx, "failed to write image event", zap.Error(werr))
			}
			content = imagePlaceholder
			o.setStatus(ctx, requestID, name, types.ToolStatusSuccess)
		default:
			content = result
			o.setStatus(ctx, requestID, name, types.ToolStatusSuccess)
		}

		history = append(history, types.Message{
			Role:       types.RoleTool,
			ToolCallID: call.ID,
			Name:       name,
			Content:    types.TextContent(content),
		})
	}

	for _, call := range calls {
		if event, ok := statusEvent(call); ok {
			if err := sink.WriteEvent(event); err != nil {
				logger.WarnC(ctx, "failed to write tool_status event", zap.Error(err))
			}
		}
	}

	if usedImage {
		history = append(history, types.Message{
			Role:    types.RoleUser,
			Content: types.TextContent(imageInstruction),
		})
	}
	return history, records
}

// statusEvent summarizes a finished search or fetch call
func statusEvent(call types.ToolCall) (types.ToolStatusEvent, bool) {
	kind, _ := functions.ParseToolKind(call.Function.Name)
	switch kind {
	case functions.KindBrowserSearch:
		args, _ := functions.ParseSearchArgs(call.Function.Arguments)
		return types.ToolStatusEvent{
			Type:    types.EventToolStatus,
			Tool:    functions.BrowserSearchToolName,
			Details: fmt.Sprintf("Searched %d sites", args.MaxResults),
		}, true
	case functions.KindOpenURL:
		args, _ := functions.ParseOpenURLArgs(call.Function.Arguments)
		return types.ToolStatusEvent{
			Type:    types.EventToolStatus,
			Tool:    functions.OpenURLToolName,
			Details: "Reading " + shortenURL(args.URL),
		}, true
	default:
		return types.ToolStatusEvent{}, false
	}
}

func shortenURL(url string) string {
	if utf8.RuneCountInString(url) <= urlDisplayLimit {
		return url
	}
	return string([]rune(url)[:urlDisplayLimit]) + "..."
}

func (o *ToolOrchestrator) setStatus(ctx context.Context, requestID, tool string, status types.ToolStatus) {
	if requestID == "" {
		return
	}
	if err := o.status.SetToolStatus(ctx, requestID, tool, status); err != nil {
		logger.WarnC(ctx, "failed to record tool status",
			zap.String("tool", tool),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (o *ToolOrchestrator) streamFinal(ctx context.Context, payload []byte, sink EventSink, out ToolOutcome) ToolOutcome {
	out.enter(StateStreamFinal)
	stream, err := o.chat.ChatCompletionStream(ctx, payload)
	if err != nil {
		return o.fail(ctx, sink, out, fmt.Errorf("streaming call: %w", err))
	}
	defer stream.Close()

	out.Relay = o.relay.Relay(ctx, stream, sink)
	if out.Relay.Err != nil {
		out.Err = out.Relay.Err
		out.enter(StateFailed)
		return out
	}
	out.enter(StateDone)
	return out
}

func (o *ToolOrchestrator) fail(ctx context.Context, sink EventSink, out ToolOutcome, err error) ToolOutcome {
	logger.ErrorC(ctx, "tool-aware completion failed",
		zap.String("state", out.State.String()),
		zap.String("errorType", string(types.ClassifyError(err))),
		zap.Error(err),
	)
	if werr := sink.WriteError(); werr != nil {
		logger.WarnC(ctx, "failed to write error frame", zap.Error(werr))
	}
	out.Err = err
	out.enter(StateFailed)
	return out
}

func (o *ToolOrchestrator) writeContentPolicyWarning(sink EventSink, model string) error {
	id := "chatcmpl-" + uuid.NewString()
	created := o.now().Unix()
	warning := types.ErrMsgContentPolicy
	stop := types.FinishReasonStop

	first := types.StreamChunk{
		ID:      id,
		Object:  types.ChunkObject,
		Created: created,
		Model:   model,
		Choices: []types.ChunkChoice{{
			Delta: types.ChunkDelta{Role: types.RoleAssistant, Content: &warning},
		}},
	}
	last := types.StreamChunk{
		ID:      id,
		Object:  types.ChunkObject,
		Created: created,
		Model:   model,
		Choices: []types.ChunkChoice{{FinishReason: &stop}},
	}
	if err := sink.WriteChunk(first); err != nil {
		return err
	}
	return sink.WriteChunkAndDone(last)
}
