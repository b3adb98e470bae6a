package logic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// sseFrames splits a recorded SSE body into its data payloads
func sseFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "unexpected block %q", block)
		frames = append(frames, strings.TrimPrefix(block, "data: "))
	}
	return frames
}

func frameType(frame string) string {
	return gjson.Get(frame, "type").String()
}
