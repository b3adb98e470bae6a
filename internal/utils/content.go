package utils

import (
	"strings"

	"github.com/zgsm-ai/chat-proxy/internal/types"
)

const (
	documentLogPrefix     = "Uploaded Document File Text: "
	documentForwardPrefix = "Uploaded Document File: "
)

// ExtractLatestUserContent returns the text and image urls of the most recent
// user message. Document parts are folded into the text for the prompt log.
func ExtractLatestUserContent(history []types.Message) (string, []string) {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != types.RoleUser {
			continue
		}
		if !msg.Content.IsParts() {
			return msg.Content.Text, []string{}
		}

		var b strings.Builder
		imageURLs := []string{}
		for _, part := range msg.Content.Parts {
			switch part.Type {
			case types.ContentTypeText:
				b.WriteString(part.Text)
				b.WriteString(" ")
			case types.ContentTypeDocument:
				b.WriteString(documentLogPrefix)
				b.WriteString(part.Text)
				b.WriteString(" ")
			case types.ContentTypeImageURL:
				if part.ImageURL != nil {
					imageURLs = append(imageURLs, part.ImageURL.URL)
				}
			}
		}
		return strings.TrimRight(b.String(), " "), imageURLs
	}
	return "", []string{}
}

// NormalizeDocuments rewrites every document part as a text part, since
// upstream chat APIs reject the document content type. The input is not modified.
func NormalizeDocuments(history []types.Message) []types.Message {
	out := make([]types.Message, len(history))
	for i, msg := range history {
		if !hasDocument(msg) {
			out[i] = msg
			continue
		}
		msg = msg.Clone()
		for j, part := range msg.Content.Parts {
			if part.Type == types.ContentTypeDocument {
				msg.Content.Parts[j] = types.TextPart(documentForwardPrefix + part.Text)
			}
		}
		out[i] = msg
	}
	return out
}

func hasDocument(msg types.Message) bool {
	for _, part := range msg.Content.Parts {
		if part.Type == types.ContentTypeDocument {
			return true
		}
	}
	return false
}
