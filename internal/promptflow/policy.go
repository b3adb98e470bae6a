package promptflow

import (
	"sync"

	"github.com/zgsm-ai/chat-proxy/internal/config"
)

// ModelPolicy maps the model a client asked for onto the model that is
// called upstream and the system prompt injected for it. It is swapped
// atomically on config reload.
type ModelPolicy struct {
	mu      sync.RWMutex
	def     config.ModelRoute
	routes  map[string]config.ModelRoute
	prompts map[string]string
}

func NewModelPolicy(models config.ModelsConfig, prompts map[string]string) *ModelPolicy {
	p := &ModelPolicy{}
	p.Update(models, prompts)
	return p
}

// Update replaces the routing table and prompt templates
func (p *ModelPolicy) Update(models config.ModelsConfig, prompts map[string]string) {
	routes := make(map[string]config.ModelRoute, len(models.Routes))
	for k, v := range models.Routes {
		routes[k] = v
	}
	templates := make(map[string]string, len(prompts))
	for k, v := range prompts {
		templates[k] = v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.def = models.Default
	p.routes = routes
	p.prompts = templates
}

// Resolve returns the effective model and the unrendered system prompt template
func (p *ModelPolicy) Resolve(requested string) (string, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	route, ok := p.routes[requested]
	if !ok {
		route = p.def
	}
	if route.EffectiveModel == "" {
		route.EffectiveModel = p.def.EffectiveModel
	}
	return route.EffectiveModel, p.prompts[route.PromptVariant]
}
