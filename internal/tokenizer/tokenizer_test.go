package tokenizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCodec treats every space-separated word as one token so tests can
// exercise multi-character tokens without the BPE ranks.
type wordCodec struct {
	vocab []string
	index map[string]int
}

func newWordCodec() *wordCodec {
	return &wordCodec{index: map[string]int{}}
}

func (c *wordCodec) Encode(text string) []int {
	var tokens []int
	for _, w := range strings.SplitAfter(text, " ") {
		if w == "" {
			continue
		}
		id, ok := c.index[w]
		if !ok {
			id = len(c.vocab)
			c.vocab = append(c.vocab, w)
			c.index[w] = id
		}
		tokens = append(tokens, id)
	}
	return tokens
}

func (c *wordCodec) Decode(tokens []int) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(c.vocab[t])
	}
	return b.String()
}

func TestCount(t *testing.T) {
	tc := NewRuneCounter()
	assert.Equal(t, 0, tc.Count(""))
	assert.Equal(t, 5, tc.Count("hello"))
	assert.Equal(t, 2, tc.Count("你好"))

	words := NewWithCodec(newWordCodec())
	assert.Equal(t, 3, words.Count("one two three"))
}

func TestTruncateTo(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		max   int
		want  string
		codec Codec
	}{
		{name: "within budget", text: "hello", max: 5, want: "hello", codec: runeCodec{}},
		{name: "over budget", text: "hello world", max: 5, want: "hello", codec: runeCodec{}},
		{name: "multibyte", text: "你好世界", max: 2, want: "你好", codec: runeCodec{}},
		{name: "zero budget", text: "hello", max: 0, want: "", codec: runeCodec{}},
		{name: "word tokens", text: "one two three four", max: 2, want: "one two ", codec: newWordCodec()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewWithCodec(tt.codec)
			assert.Equal(t, tt.want, tc.TruncateTo(tt.text, tt.max))
		})
	}
}

func TestTruncateToProperties(t *testing.T) {
	tc := NewRuneCounter()
	texts := []string{"", "a", "short text", strings.Repeat("long text ", 50), "混合 mixed 文本"}

	for _, text := range texts {
		for _, n := range []int{1, 3, 10, 100} {
			once := tc.TruncateTo(text, n)
			assert.LessOrEqual(t, tc.Count(once), n)
			assert.Equal(t, once, tc.TruncateTo(once, n))
			if tc.Count(text) <= n {
				assert.Equal(t, text, once)
			}
		}
	}
}

func TestCL100K_Count(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	assert.Equal(t, 0, tc.Count(""))
	assert.Equal(t, 2, tc.Count("hello world"))
	assert.Greater(t, tc.Count("你好，世界"), 0)
}

func TestCL100K_TruncateToProperties(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	texts := []string{
		"plain ascii text that goes on for a while",
		"你好世界，这是一个用于测试截断的中文句子。",
		"emoji 😀🎉👩‍👩‍👧‍👦 mixed with text 🚀",
		"日本語とEnglishと한국어が混ざった文章です",
		strings.Repeat("🧪", 40),
	}

	for _, text := range texts {
		for _, n := range []int{1, 2, 3, 5, 8, 13, 50} {
			once := tc.TruncateTo(text, n)
			assert.LessOrEqual(t, tc.Count(once), n, "text %q n %d", text, n)
			assert.True(t, utf8.ValidString(once), "text %q n %d", text, n)
			assert.Equal(t, once, tc.TruncateTo(once, n), "text %q n %d", text, n)
			if tc.Count(text) <= n {
				assert.Equal(t, text, once)
			} else {
				assert.True(t, strings.HasPrefix(text, once), "text %q n %d", text, n)
			}
		}
	}
}
