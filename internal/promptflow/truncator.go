package promptflow

import (
	"encoding/json"

	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// TokenCounter is the part of the tokenizer the truncator needs
type TokenCounter interface {
	Count(text string) int
	TruncateTo(text string, maxTokens int) string
}

// MessageTruncator trims a conversation so that the system prompt plus the
// kept messages fit a fixed token budget
type MessageTruncator struct {
	counter     TokenCounter
	usable      int
	documentCap int
}

func NewMessageTruncator(counter TokenCounter, usable, documentCap int) *MessageTruncator {
	return &MessageTruncator{
		counter:     counter,
		usable:      usable,
		documentCap: documentCap,
	}
}

// Truncate keeps the newest messages of history that fit the budget, in
// their original order. The last message is always kept, cut
// down if needed. Only the most recent document attachment survives.
// history itself is not modified.
func (t *MessageTruncator) Truncate(history []types.Message, systemPrompt string) []types.Message {
	baseTokens := t.counter.Count(systemPrompt)
	if len(history) == 0 {
		return []types.Message{}
	}

	messages := make([]types.Message, len(history))
	for i, msg := range history {
		messages[i] = msg.Clone()
	}
	t.keepLatestDocument(messages)

	last := len(messages) - 1
	messages[last] = t.fitLastMessage(messages[last])
	baseTokens = t.counter.Count(systemPrompt + serializeMessage(messages[last]))

	start := last
	for i := last - 1; i >= 0; i-- {
		cost := t.messageCost(messages[i])
		if baseTokens+cost > t.usable {
			break
		}
		baseTokens += cost
		start = i
	}
	return messages[start:]
}

// keepLatestDocument drops every document part except the last one found,
// scanning oldest to newest, and caps the survivor's text
func (t *MessageTruncator) keepLatestDocument(messages []types.Message) {
	msgIdx, partIdx := -1, -1
	for i, msg := range messages {
		for j, part := range msg.Content.Parts {
			if part.Type == types.ContentTypeDocument {
				msgIdx, partIdx = i, j
			}
		}
	}
	if msgIdx < 0 {
		return
	}

	survivor := &messages[msgIdx].Content.Parts[partIdx]
	survivor.Text = t.counter.TruncateTo(survivor.Text, t.documentCap)

	for i := range messages {
		parts := messages[i].Content.Parts
		if parts == nil {
			continue
		}
		kept := parts[:0]
		for j, part := range parts {
			if part.Type == types.ContentTypeDocument && (i != msgIdx || j != partIdx) {
				continue
			}
			kept = append(kept, part)
		}
		messages[i].Content.Parts = kept
	}
}

// fitLastMessage cuts the last message down to the usable budget. Text and
// document parts are charged in order; the part that crosses the budget is
// truncated to what remains and later textual parts are dropped. Image
// parts are never charged and are always kept.
func (t *MessageTruncator) fitLastMessage(msg types.Message) types.Message {
	if !msg.Content.IsParts() {
		msg.Content.Text = t.counter.TruncateTo(msg.Content.Text, t.usable)
		return msg
	}

	parts := make([]types.ContentPart, 0, len(msg.Content.Parts))
	used := 0
	exhausted := false
	for _, part := range msg.Content.Parts {
		if !part.IsTextual() {
			parts = append(parts, part)
			continue
		}
		if exhausted {
			continue
		}

		cost := t.counter.Count(part.Text)
		if used+cost > t.usable {
			exhausted = true
			if remaining := t.usable - used; remaining > 0 {
				part.Text = t.counter.TruncateTo(part.Text, remaining)
				parts = append(parts, part)
			}
			continue
		}
		used += cost
		parts = append(parts, part)
	}
	msg.Content.Parts = parts
	return msg
}

// messageCost charges text and document parts, or the plain text
func (t *MessageTruncator) messageCost(msg types.Message) int {
	if !msg.Content.IsParts() {
		return t.counter.Count(msg.Content.Text)
	}
	cost := 0
	for _, part := range msg.Content.Parts {
		if part.IsTextual() {
			cost += t.counter.Count(part.Text)
		}
	}
	return cost
}

func serializeMessage(msg types.Message) string {
	data, err := json.Marshal(msg)
	if err != nil {
		return msg.Content.Text
	}
	return string(data)
}
