package router

import (
	"context"

	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// Strategy defines a routing strategy that selects an upstream endpoint
type Strategy interface {
	Name() string
	Select(ctx context.Context) (*types.UpstreamTarget, error)
	// Update replaces the endpoint set; weights overrides configured weights by name
	Update(endpoints []config.EndpointConfig, weights map[string]int) error
}
