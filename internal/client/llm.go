package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zgsm-ai/chat-proxy/internal/timeout"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

const maxErrorBody = 64 << 10

// ChatClient issues chat-completions calls against one upstream endpoint
type ChatClient interface {
	// ChatCompletion sends a non-streaming request and returns the raw JSON body
	ChatCompletion(ctx context.Context, body []byte) ([]byte, error)
	// ChatCompletionStream sends a streaming request and returns the SSE body.
	// The caller must close it.
	ChatCompletionStream(ctx context.Context, body []byte) (io.ReadCloser, error)
}

// LLMOptions bounds every upstream call
type LLMOptions struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	IdleTimeout    time.Duration
}

// NewUpstreamHTTPClient builds the shared transport with the connect timeout applied
func NewUpstreamHTTPClient(connectTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Transport: transport}
}

// LLMClient handles communication with one chat-completions endpoint
type LLMClient struct {
	endpoint   string
	apiKey     string
	opts       LLMOptions
	httpClient *http.Client
}

// NewLLMClient creates a client posting to {baseURL}/chat/completions
func NewLLMClient(httpClient *http.Client, baseURL, apiKey string, opts LLMOptions) (*LLMClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("NewLLMClient base url cannot be empty")
	}
	if httpClient == nil {
		httpClient = NewUpstreamHTTPClient(opts.ConnectTimeout)
	}
	return &LLMClient{
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:     apiKey,
		opts:       opts,
		httpClient: httpClient,
	}, nil
}

func (c *LLMClient) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

func (c *LLMClient) withTotalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.TotalTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.TotalTimeout)
}

// ChatCompletion implements ChatClient
func (c *LLMClient) ChatCompletion(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := c.withTotalTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.UpstreamTransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.UpstreamTransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	return data, nil
}

// ChatCompletionStream implements ChatClient. The total and idle timeouts
// keep running until the returned body is closed.
func (c *LLMClient) ChatCompletionStream(ctx context.Context, body []byte) (io.ReadCloser, error) {
	ctx, cancel := c.withTotalTimeout(ctx)
	idleCtx, idle := timeout.NewIdleTimer(ctx, c.opts.IdleTimeout)

	req, err := c.newRequest(idleCtx, body)
	if err != nil {
		idle.Stop()
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		idle.Stop()
		cancel()
		return nil, &types.UpstreamTransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer idle.Stop()
		defer resp.Body.Close()
		return nil, readHTTPError(resp)
	}

	return &streamBody{
		ReadCloser: timeout.NewIdleReader(resp.Body, idle),
		cancel:     cancel,
	}, nil
}

type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func readHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &types.UpstreamHTTPError{StatusCode: resp.StatusCode, Body: string(data)}
}

// ProbeResult is the assistant turn of a non-streaming completion
type ProbeResult struct {
	// Message is the assistant message as returned, kept raw so it can be
	// replayed verbatim in the follow-up call
	Message   string
	ToolCalls []types.ToolCall
}

// ParseProbeResponse extracts choices[0].message and its tool calls
func ParseProbeResponse(body []byte) (*ProbeResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, &types.MalformedFrameError{Data: truncateForLog(string(body))}
	}

	message := gjson.GetBytes(body, "choices.0.message")
	result := &ProbeResult{Message: message.Raw}
	for _, call := range message.Get("tool_calls").Array() {
		callType := call.Get("type").String()
		if callType == "" {
			callType = "function"
		}
		result.ToolCalls = append(result.ToolCalls, types.ToolCall{
			ID:   call.Get("id").String(),
			Type: callType,
			Function: types.FunctionCall{
				Name:      call.Get("function.name").String(),
				Arguments: call.Get("function.arguments").String(),
			},
		})
	}
	return result, nil
}

func truncateForLog(s string) string {
	const limit = 256
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
