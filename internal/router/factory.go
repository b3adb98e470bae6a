package router

import (
	"fmt"

	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/router/strategies/priority"
	"go.uber.org/zap"
)

// NewRunner creates the endpoint selection strategy
func NewRunner(cfg config.UpstreamConfig, weights map[string]int) (Strategy, error) {
	strategy, err := priority.New(cfg.Endpoints, weights)
	if err != nil {
		logger.Error("priority router: failed to create strategy",
			zap.Error(err),
		)
		return nil, fmt.Errorf("create router: %w", err)
	}
	return strategy, nil
}
