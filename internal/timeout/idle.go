package timeout

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
)

// ErrIdleTimeout is returned by IdleReader once the idle window elapsed
var ErrIdleTimeout = errors.New("upstream idle timeout")

// IdleTimer cancels its context when Reset is not called within perIdle
type IdleTimer struct {
	ctx        context.Context
	cancel     context.CancelFunc
	perIdle    time.Duration
	timer      *time.Timer
	mu         sync.Mutex
	fired      bool
	stopped    bool
	resetCount int64
}

// NewIdleTimer derives a context from parentCtx that is cancelled after
// perIdle without activity. A non-positive perIdle disables the timer.
func NewIdleTimer(parentCtx context.Context, perIdle time.Duration) (context.Context, *IdleTimer) {
	ctx, cancel := context.WithCancel(parentCtx)
	it := &IdleTimer{ctx: ctx, cancel: cancel, perIdle: perIdle}
	if perIdle <= 0 {
		return ctx, it
	}

	it.timer = time.NewTimer(perIdle)
	go it.watch()
	return ctx, it
}

func (it *IdleTimer) watch() {
	select {
	case <-it.ctx.Done():
		it.mu.Lock()
		it.timer.Stop()
		it.mu.Unlock()
	case <-it.timer.C:
		it.mu.Lock()
		defer it.mu.Unlock()
		if it.stopped {
			return
		}
		it.fired = true
		logger.Warn("IdleTimer: timeout triggered",
			zap.Duration("perIdle", it.perIdle),
			zap.Int64("resetCount", it.resetCount))
		it.cancel()
	}
}

// Reset restarts the idle window after activity
func (it *IdleTimer) Reset() {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.stopped || it.fired || it.timer == nil {
		return
	}
	it.timer.Stop()
	it.timer.Reset(it.perIdle)
	it.resetCount++
}

// Fired reports whether the idle window elapsed
func (it *IdleTimer) Fired() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.fired
}

// Stop disarms the timer and releases the derived context
func (it *IdleTimer) Stop() {
	it.mu.Lock()
	if it.stopped {
		it.mu.Unlock()
		return
	}
	it.stopped = true
	if it.timer != nil {
		it.timer.Stop()
	}
	it.mu.Unlock()
	it.cancel()
}

// IdleReader resets timer on every successful read and reports
// ErrIdleTimeout instead of the cancellation error once it fired
type IdleReader struct {
	r     io.ReadCloser
	timer *IdleTimer
}

func NewIdleReader(r io.ReadCloser, timer *IdleTimer) *IdleReader {
	return &IdleReader{r: r, timer: timer}
}

func (ir *IdleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset()
	}
	if err != nil && err != io.EOF && ir.timer.Fired() {
		return n, ErrIdleTimeout
	}
	return n, err
}

func (ir *IdleReader) Close() error {
	ir.timer.Stop()
	return ir.r.Close()
}
