package promptflow

import (
	"time"

	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/promptflow/ds"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"github.com/zgsm-ai/chat-proxy/internal/utils"
	"go.uber.org/zap"
)

const dateLayout = "02 January 2006"

// PromptArranger is the interface for processing chat prompts
type PromptArranger interface {
	Arrange(requestedModel string, messages []types.Message) *ds.ProcessedPrompt
}

// Arranger resolves the system prompt, truncates the history to the budget
// and normalizes document parts
type Arranger struct {
	policy    *ModelPolicy
	truncator *MessageTruncator
	now       func() time.Time
}

func NewArranger(policy *ModelPolicy, truncator *MessageTruncator) *Arranger {
	return &Arranger{policy: policy, truncator: truncator, now: time.Now}
}

func (a *Arranger) Arrange(requestedModel string, messages []types.Message) *ds.ProcessedPrompt {
	model, tmpl := a.policy.Resolve(requestedModel)
	systemPrompt := utils.RenderTemplate(tmpl, map[string]string{
		"datetime_now": a.now().Format(dateLayout),
	})

	kept := a.truncator.Truncate(messages, systemPrompt)
	forwarded := make([]types.Message, 0, len(kept)+1)
	forwarded = append(forwarded, types.Message{
		Role:    types.RoleSystem,
		Content: types.TextContent(systemPrompt),
	})
	forwarded = append(forwarded, utils.NormalizeDocuments(kept)...)

	if len(kept) < len(messages) {
		logger.Info("history truncated to fit token budget",
			zap.Int("original", len(messages)),
			zap.Int("kept", len(kept)),
		)
	}

	return &ds.ProcessedPrompt{
		Messages:       forwarded,
		EffectiveModel: model,
		SystemPrompt:   systemPrompt,
		OriginalCount:  len(messages),
		KeptCount:      len(kept),
	}
}
