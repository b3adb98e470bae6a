package logic

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// EventSink receives the outbound SSE frames of one request. Once the
// terminal sentinel has been written every further write is dropped.
type EventSink interface {
	// WriteEvent writes an arbitrary JSON frame (tool progress, images)
	WriteEvent(v any) error
	WriteChunk(chunk types.StreamChunk) error
	// WriteChunkAndDone writes chunk and the sentinel in one flush
	WriteChunkAndDone(chunk types.StreamChunk) error
	WriteDone() error
	// WriteError writes the generic error frame followed by the sentinel
	WriteError() error
	Done() bool
}

// SSEWriter frames events as "data: <json>\n\n" on an http.ResponseWriter
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	done    bool
}

func NewSSEWriter(w io.Writer) *SSEWriter {
	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

// SetSSEResponseHeaders sets headers for SSE response
func SetSSEResponseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func (s *SSEWriter) WriteEvent(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if err := s.writeData(v); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *SSEWriter) WriteChunk(chunk types.StreamChunk) error {
	return s.WriteEvent(chunk)
}

func (s *SSEWriter) WriteChunkAndDone(chunk types.StreamChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if err := s.writeData(chunk); err != nil {
		return err
	}
	return s.finish()
}

func (s *SSEWriter) WriteDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	return s.finish()
}

func (s *SSEWriter) WriteError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	if err := s.writeData(types.ErrorFrame{Error: types.ErrMsgGeneric}); err != nil {
		return err
	}
	return s.finish()
}

func (s *SSEWriter) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *SSEWriter) writeData(v any) error {
	data, err := types.MarshalJSONWithoutEscape(v)
	if err != nil {
		logger.Error("failed to marshal SSE frame", zap.Error(err))
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *SSEWriter) finish() error {
	s.done = true
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", types.StreamDoneSentinel); err != nil {
		return fmt.Errorf("write sentinel: %w", err)
	}
	s.flush()
	return nil
}

func (s *SSEWriter) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
