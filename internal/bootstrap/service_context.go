package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/zgsm-ai/chat-proxy/internal/auth"
	"github.com/zgsm-ai/chat-proxy/internal/client"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/functions"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/promptflow"
	"github.com/zgsm-ai/chat-proxy/internal/router"
	"github.com/zgsm-ai/chat-proxy/internal/service"
	"github.com/zgsm-ai/chat-proxy/internal/store"
	"github.com/zgsm-ai/chat-proxy/internal/tokenizer"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// ServiceContext holds all service dependencies
type ServiceContext struct {
	mu     sync.RWMutex
	config config.Config

	// Clients
	RedisClient client.RedisInterface
	HTTPClient  *http.Client

	Store store.Store
	Auth  *auth.Validator

	Router   router.Strategy
	Policy   *promptflow.ModelPolicy
	Arranger promptflow.PromptArranger

	// Services
	LoggerService  service.LogRecordInterface
	MetricsService *service.MetricsService
	ResetJob       *service.DailyResetJob

	// Utilities
	TokenCounter *tokenizer.TokenCounter

	ToolExecutor functions.ToolExecutor

	toolsEnabled atomic.Bool
}

// NewServiceContext creates a new service context with all dependencies
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	sqliteStore, err := store.Open(c.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	weights, err := sqliteStore.EndpointWeights(context.Background())
	if err != nil {
		logger.Warn("failed to load endpoint weights, using configured weights", zap.Error(err))
		weights = nil
	}
	runner, err := router.NewRunner(c.Upstream, weights)
	if err != nil {
		sqliteStore.Close()
		return nil, err
	}

	toolExecutor, err := newToolExecutor(c)
	if err != nil {
		sqliteStore.Close()
		return nil, err
	}

	tokenCounter, err := tokenizer.NewTokenCounter()
	if err != nil {
		sqliteStore.Close()
		return nil, err
	}
	policy := promptflow.NewModelPolicy(c.Models, c.Prompts)
	truncator := promptflow.NewMessageTruncator(tokenCounter, c.Budget.Usable(), c.Budget.DocumentCap)

	metricsService := service.NewMetricsService()
	loggerService := service.NewLogRecordService(sqliteStore, metricsService)
	if err := loggerService.Start(); err != nil {
		sqliteStore.Close()
		return nil, fmt.Errorf("failed to start logger service: %w", err)
	}

	var redisClient client.RedisInterface = client.NoopStatusStore{}
	if c.Redis.Addr != "" {
		redisClient = client.NewRedisClient(c.Redis)
	}

	svc := &ServiceContext{
		config:         c,
		RedisClient:    redisClient,
		HTTPClient:     client.NewUpstreamHTTPClient(c.Upstream.ConnectTimeout),
		Store:          sqliteStore,
		Auth:           auth.NewValidator(c.Auth, sqliteStore),
		Router:         runner,
		Policy:         policy,
		Arranger:       promptflow.NewArranger(policy, truncator),
		LoggerService:  loggerService,
		MetricsService: metricsService,
		ResetJob:       service.NewDailyResetJob(sqliteStore),
		TokenCounter:   tokenCounter,
		ToolExecutor:   toolExecutor,
	}
	svc.toolsEnabled.Store(c.Tools.Enabled)
	return svc, nil
}

func newToolExecutor(c config.Config) (functions.ToolExecutor, error) {
	manager, err := functions.LoadToolManager(c.Tools.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tool catalog: %w", err)
	}

	var backends functions.Backends
	if c.Tools.SearchEndpoint != "" {
		backends.Search = client.NewSearchClient(c.Tools.SearchEndpoint, c.Tools.SearchAPIKey, c.Tools.Timeout)
	}
	backends.Fetch = client.NewPageFetcher(c.Tools.Timeout, c.Tools.FetchMaxChars)
	if c.Tools.ImageEndpoint != "" {
		var images client.ImageStore
		minioStore, err := client.NewMinioImageStore(c.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		if minioStore != nil {
			images = minioStore
		}
		backends.Image = client.NewImageGenerator(c.Tools.ImageEndpoint, c.Tools.ImageAPIKey, c.Tools.Timeout, images)
	}
	return functions.NewGenericToolExecutor(manager, backends), nil
}

// Config returns the current configuration snapshot
func (svc *ServiceContext) Config() config.Config {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.config
}

// ToolsEnabled reports whether every request takes the tool-aware path
func (svc *ServiceContext) ToolsEnabled() bool {
	return svc.toolsEnabled.Load()
}

// NewChatClient builds a client for the selected upstream endpoint
func (svc *ServiceContext) NewChatClient(target types.UpstreamTarget) (client.ChatClient, error) {
	up := svc.Config().Upstream
	return client.NewLLMClient(svc.HTTPClient, target.BaseURL, target.APIKey, client.LLMOptions{
		ConnectTimeout: up.ConnectTimeout,
		TotalTimeout:   up.TotalTimeout,
		IdleTimeout:    up.IdleTimeout,
	})
}

// Reload applies a changed configuration: prompts, model policy, static
// keys, endpoints and the tools flag. Budget and collaborators need a restart.
func (svc *ServiceContext) Reload(c config.Config) {
	svc.mu.Lock()
	svc.config = c
	svc.mu.Unlock()

	svc.Policy.Update(c.Models, c.Prompts)
	svc.Auth.Update(c.Auth)
	svc.toolsEnabled.Store(c.Tools.Enabled)

	weights, err := svc.Store.EndpointWeights(context.Background())
	if err != nil {
		logger.Warn("failed to reload endpoint weights", zap.Error(err))
	}
	if err := svc.Router.Update(c.Upstream.Endpoints, weights); err != nil {
		logger.Error("keeping previous endpoints after reload", zap.Error(err))
	}
	logger.Info("configuration reloaded")
}

// Stop gracefully stops all services
func (svc *ServiceContext) Stop() {
	if svc.LoggerService != nil {
		svc.LoggerService.Stop()
	}
	if svc.RedisClient != nil {
		if err := svc.RedisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if svc.Store != nil {
		if err := svc.Store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}
}
