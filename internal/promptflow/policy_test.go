package promptflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/tokenizer"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

func testPolicy() *ModelPolicy {
	return NewModelPolicy(config.ModelsConfig{
		Default: config.ModelRoute{EffectiveModel: "gpt-4o-mini", PromptVariant: "standard"},
		Routes: map[string]config.ModelRoute{
			"o1": {EffectiveModel: "gpt-4o-mini", PromptVariant: "cot"},
		},
	}, map[string]string{
		"standard": "Current date: {datetime_now}. Keep {unknown}.",
		"cot":      "Think step by step.",
	})
}

func TestModelPolicy_Resolve(t *testing.T) {
	p := testPolicy()

	model, tmpl := p.Resolve("o1")
	assert.Equal(t, "gpt-4o-mini", model)
	assert.Equal(t, "Think step by step.", tmpl)

	model, tmpl = p.Resolve("gpt-4")
	assert.Equal(t, "gpt-4o-mini", model)
	assert.Contains(t, tmpl, "{datetime_now}")

	p.Update(config.ModelsConfig{
		Default: config.ModelRoute{EffectiveModel: "other", PromptVariant: "standard"},
	}, map[string]string{"standard": "new"})
	model, tmpl = p.Resolve("o1")
	assert.Equal(t, "other", model)
	assert.Equal(t, "new", tmpl)
}

func TestArranger_Arrange(t *testing.T) {
	a := NewArranger(testPolicy(), NewMessageTruncator(tokenizer.NewRuneCounter(), 7500, 6000))
	a.now = func() time.Time { return time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC) }

	got := a.Arrange("gpt-4", []types.Message{
		userParts(types.TextPart("read"), types.DocumentPart("body")),
	})

	assert.Equal(t, "gpt-4o-mini", got.EffectiveModel)
	assert.Equal(t, "Current date: 05 March 2026. Keep {unknown}.", got.SystemPrompt)
	assert.Equal(t, 1, got.KeptCount)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, types.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, got.SystemPrompt, got.Messages[0].Content.Text)
	assert.Equal(t, types.TextPart("Uploaded Document File: body"), got.Messages[1].Content.Parts[1])
}
