package priority

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

const defaultWeight = 1

// Strategy picks endpoints by smooth weighted round-robin inside the
// highest priority group (lowest priority number)
type Strategy struct {
	mu             sync.RWMutex
	priorityGroups map[int]*PriorityGroup
	lowestPriority int
}

// New creates a new priority strategy instance
func New(endpoints []config.EndpointConfig, weights map[string]int) (*Strategy, error) {
	s := &Strategy{}
	if err := s.Update(endpoints, weights); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the strategy name
func (s *Strategy) Name() string {
	return "priority"
}

// Update rebuilds the priority groups. Round-robin state restarts.
func (s *Strategy) Update(endpoints []config.EndpointConfig, weights map[string]int) error {
	if err := validateEndpoints(endpoints); err != nil {
		return fmt.Errorf("invalid endpoints: %w", err)
	}

	groups := make(map[int]*PriorityGroup)
	lowest := 0
	for i, ep := range endpoints {
		weight := ep.Weight
		if w, ok := weights[ep.Name]; ok && w > 0 {
			weight = w
		}
		if weight <= 0 {
			weight = defaultWeight
		}

		group, exists := groups[ep.Priority]
		if !exists {
			group = newPriorityGroup(ep.Priority)
			groups[ep.Priority] = group
		}
		group.addEndpoint(&Candidate{
			target: types.UpstreamTarget{
				Name:     ep.Name,
				BaseURL:  ep.BaseURL,
				APIKey:   ep.APIKey,
				Priority: ep.Priority,
			},
			weight: weight,
		})

		if i == 0 || ep.Priority < lowest {
			lowest = ep.Priority
		}
	}

	s.mu.Lock()
	s.priorityGroups = groups
	s.lowestPriority = lowest
	s.mu.Unlock()
	return nil
}

// Select implements the router Strategy interface
func (s *Strategy) Select(ctx context.Context) (*types.UpstreamTarget, error) {
	s.mu.RLock()
	group := s.priorityGroups[s.lowestPriority]
	s.mu.RUnlock()

	if group == nil {
		logger.ErrorC(ctx, "priority router: highest priority group not found",
			zap.Int("priority", s.lowestPriority))
		return nil, errors.New("no upstream endpoint available")
	}

	target := group.selectByRoundRobin()
	logger.DebugC(ctx, "priority router: endpoint selected",
		zap.String("endpoint", target.Name),
		zap.Int("priority", target.Priority),
		zap.Int("groupSize", len(group.candidates)),
	)
	return &target, nil
}

func validateEndpoints(endpoints []config.EndpointConfig) error {
	if len(endpoints) == 0 {
		return errors.New("no endpoints configured")
	}
	seen := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" {
			return errors.New("endpoint name is empty")
		}
		if ep.BaseURL == "" {
			return fmt.Errorf("endpoint %s has no baseURL", ep.Name)
		}
		if _, dup := seen[ep.Name]; dup {
			return fmt.Errorf("duplicate endpoint %s", ep.Name)
		}
		seen[ep.Name] = struct{}{}
	}
	return nil
}
