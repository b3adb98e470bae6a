package service

import (
	"context"
	"sync"
	"time"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/model"
	"github.com/zgsm-ai/chat-proxy/internal/store"
	"go.uber.org/zap"
)

const (
	logQueueSize     = 1000
	storePromptLimit = 5 * time.Second
)

// LogRecordInterface defines the interface for the chat log recorder
type LogRecordInterface interface {
	// Start starts the background writer
	Start() error
	// Stop drains queued logs and stops the writer
	Stop()
	// LogAsync queues a finished request for persistence and metrics
	LogAsync(logs *model.ChatLog)
}

// LogRecordService persists the prompt of every finished request, feeds
// the metrics and writes a one-line summary to the log
type LogRecordService struct {
	store   store.Store
	metrics MetricsInterface

	logChan  chan *model.ChatLog
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopped  bool
}

// NewLogRecordService creates a recorder; prompts may be nil
func NewLogRecordService(prompts store.Store, metrics MetricsInterface) *LogRecordService {
	return &LogRecordService{
		store:    prompts,
		metrics:  metrics,
		logChan:  make(chan *model.ChatLog, logQueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start starts the log writer goroutine
func (ls *LogRecordService) Start() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.started {
		return nil
	}
	ls.started = true

	logger.Info("==> Start chat log recorder")
	ls.wg.Add(1)
	go ls.logWriter()
	return nil
}

// Stop stops the logger service
func (ls *LogRecordService) Stop() {
	ls.mu.Lock()
	if ls.stopped {
		ls.mu.Unlock()
		return
	}
	ls.stopped = true
	started := ls.started
	close(ls.stopChan)
	ls.mu.Unlock()

	if started {
		ls.wg.Wait()
	}
	// anything left was queued after the writer exited
	for {
		select {
		case log := <-ls.logChan:
			ls.logSync(log)
		default:
			return
		}
	}
}

// LogAsync records a chat completion without blocking the request
func (ls *LogRecordService) LogAsync(logs *model.ChatLog) {
	if logs == nil {
		return
	}
	ls.mu.Lock()
	stopped := ls.stopped
	ls.mu.Unlock()
	if stopped {
		ls.logSync(logs)
		return
	}

	select {
	case ls.logChan <- logs:
	default:
		// Channel is full, log synchronously to avoid dropping it
		ls.logSync(logs)
	}
}

func (ls *LogRecordService) logWriter() {
	defer ls.wg.Done()

	for {
		select {
		case log := <-ls.logChan:
			ls.logSync(log)
		case <-ls.stopChan:
			for {
				select {
				case log := <-ls.logChan:
					ls.logSync(log)
				default:
					return
				}
			}
		}
	}
}

// logSync persists one entry
func (ls *LogRecordService) logSync(logs *model.ChatLog) {
	if logs == nil {
		return
	}

	if ls.store != nil && (logs.UserPrompt != "" || len(logs.ImageURLs) > 0) {
		ctx, cancel := context.WithTimeout(context.Background(), storePromptLimit)
		err := ls.store.StorePrompt(ctx, logs.Identity.RequestID, logs.UserPrompt, logs.ImageURLs)
		cancel()
		if err != nil {
			logger.Error("Failed to store prompt",
				zap.String("request_id", logs.Identity.RequestID),
				zap.Error(err),
			)
		}
	}

	if ls.metrics != nil {
		ls.metrics.RecordChatLog(logs)
	}

	logger.Info("chat completion finished",
		zap.String("request_id", logs.Identity.RequestID),
		zap.String("key", logs.Identity.KeyName),
		zap.String("user", logs.Identity.UserName),
		zap.String("path", logs.Path),
		zap.String("model", logs.Model),
		zap.String("endpoint", logs.Endpoint),
		zap.String("state", logs.FinalState),
		zap.Int("messages", logs.OriginalMessages),
		zap.Int("kept", logs.KeptMessages),
		zap.Int("chunks", logs.ChunkCount),
		zap.Int("tools", len(logs.ToolCalls)),
		zap.Int64("total_ms", logs.TotalLatency),
		zap.Bool("error", logs.HasError()),
	)
}
