package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType defines different types of errors
type ErrorType string

const (
	// ErrUpstreamHTTP represents a non-200 answer from the chat endpoint
	ErrUpstreamHTTP ErrorType = "UpstreamHTTPError"

	// ErrContentPolicy represents an upstream content-management-policy rejection
	ErrContentPolicy ErrorType = "ContentPolicyViolation"

	// ErrUpstreamTransport represents connect failures, timeouts and dropped streams
	ErrUpstreamTransport ErrorType = "UpstreamTransportError"

	// ErrToolExecution represents a single failed tool call
	ErrToolExecution ErrorType = "ToolExecutionError"

	// ErrMalformedFrame represents an SSE data line that is not JSON
	ErrMalformedFrame ErrorType = "MalformedUpstreamFrame"

	// ErrServerError represents internal server errors
	ErrServerError ErrorType = "ServerError"
)

const (
	ErrMsgGeneric       = "An error occurred while processing your request. Please try again later."
	ErrMsgContentPolicy = "⚠️ The content may trigger our content management policy. Please modify your prompt and retry."

	contentPolicyMarker = "content management policy"
)

// APIError is the JSON error body for non-streaming failures (auth, validation)
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:       "chat-proxy.unauthorized",
		Message:    message,
		Type:       "auth_error",
		StatusCode: http.StatusUnauthorized,
	}
}

func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:       "chat-proxy.invalid_request",
		Message:    message,
		Type:       "invalid_request_error",
		StatusCode: http.StatusBadRequest,
	}
}

func NewRateLimitError() *APIError {
	return &APIError{
		Code:       "chat-proxy.rate_limited",
		Message:    "Too many requests. Please slow down.",
		Type:       "rate_limit_error",
		StatusCode: http.StatusTooManyRequests,
	}
}

// UpstreamHTTPError is a non-200 response from the chat endpoint
type UpstreamHTTPError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// IsContentPolicy reports whether the body names the content management policy
func (e *UpstreamHTTPError) IsContentPolicy() bool {
	return strings.Contains(strings.ToLower(e.Body), contentPolicyMarker)
}

// UpstreamTransportError wraps connect failures, timeouts and broken streams
type UpstreamTransportError struct {
	Err error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("upstream transport error: %v", e.Err)
}

func (e *UpstreamTransportError) Unwrap() error {
	return e.Err
}

// ToolExecutionError is a failure of one tool call
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// MalformedFrameError is an SSE data payload that failed to parse
type MalformedFrameError struct {
	Data string
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed upstream frame: %q", e.Data)
}

// IsContentPolicyError reports whether err is an upstream content policy rejection
func IsContentPolicyError(err error) bool {
	var httpErr *UpstreamHTTPError
	return errors.As(err, &httpErr) && httpErr.IsContentPolicy()
}

// ClassifyError maps err onto the error taxonomy for logs and metrics
func ClassifyError(err error) ErrorType {
	var (
		httpErr      *UpstreamHTTPError
		transportErr *UpstreamTransportError
		toolErr      *ToolExecutionError
		frameErr     *MalformedFrameError
	)
	switch {
	case errors.As(err, &httpErr):
		if httpErr.IsContentPolicy() {
			return ErrContentPolicy
		}
		return ErrUpstreamHTTP
	case errors.As(err, &transportErr):
		return ErrUpstreamTransport
	case errors.As(err, &toolErr):
		return ErrToolExecution
	case errors.As(err, &frameErr):
		return ErrMalformedFrame
	default:
		return ErrServerError
	}
}
