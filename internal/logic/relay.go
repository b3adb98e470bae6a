package logic

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"github.com/zgsm-ai/chat-proxy/internal/utils"
	"go.uber.org/zap"
)

const dataPrefix = "data: "

// RelayResult describes one relayed upstream stream
type RelayResult struct {
	Frames  int
	Stopped bool
	Content string
	Usage   *types.Usage
	Stats   *utils.ChunkStatInfo
	// Err is set when the upstream read failed; the sink already holds the
	// error frame and the sentinel
	Err error
}

// StreamRelay copies an upstream SSE stream to the client, normalizing
// every frame on the way
type StreamRelay struct{}

func NewStreamRelay() *StreamRelay {
	return &StreamRelay{}
}

// Relay reads upstream until a stop chunk, the upstream sentinel, EOF or a
// read failure. The sink always ends with the sentinel.
func (r *StreamRelay) Relay(ctx context.Context, upstream io.Reader, sink EventSink) (result RelayResult) {
	var (
		content strings.Builder
		stats   = utils.NewChunkStats()
		isFirst = true
		reader  = bufio.NewReader(upstream)
	)
	defer func() {
		result.Content = content.String()
		result.Stats = stats.End()
	}()

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			stop, err := r.handleLine(ctx, line, &isFirst, &result, &content, stats, sink)
			if err != nil {
				result.Err = err
				return result
			}
			if stop {
				return result
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			if err := sink.WriteDone(); err != nil {
				result.Err = err
			}
			return result
		}

		transportErr := &types.UpstreamTransportError{Err: readErr}
		logger.ErrorC(ctx, "upstream stream read failed",
			zap.Error(readErr),
			zap.Int("frames", result.Frames),
		)
		_ = sink.WriteError()
		result.Err = transportErr
		return result
	}
}

// handleLine returns true when the relay is finished
func (r *StreamRelay) handleLine(
	ctx context.Context,
	line string,
	isFirst *bool,
	result *RelayResult,
	content *strings.Builder,
	stats *utils.ChunkStats,
	sink EventSink,
) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == types.StreamDoneSentinel {
		return true, sink.WriteDone()
	}

	if !gjson.Valid(payload) {
		logger.WarnC(ctx, "skipping malformed upstream frame",
			zap.Error(&types.MalformedFrameError{Data: payload}),
		)
		return false, nil
	}
	raw := gjson.Parse(payload)

	if usage := raw.Get("usage"); usage.IsObject() {
		result.Usage = &types.Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}
	// usage-only and keep-alive frames carry no choice to relay
	if !raw.Get("choices.0").Exists() {
		return false, nil
	}

	chunk := NormalizeChunk(raw, *isFirst)
	*isFirst = false
	stats.OnChunk()
	result.Frames++
	if c := chunk.Choices[0].Delta.Content; c != nil {
		content.WriteString(*c)
	}

	if chunk.FinishReason() == types.FinishReasonStop {
		result.Stopped = true
		return true, sink.WriteChunkAndDone(chunk)
	}
	return false, sink.WriteChunk(chunk)
}
