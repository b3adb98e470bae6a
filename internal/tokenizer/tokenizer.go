package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// ranks are compiled in, so counting never depends on network access
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// DefaultEncoding is the BPE encoding used for every budget decision
const DefaultEncoding = "cl100k_base"

// Codec converts between text and token ids
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// TokenCounter provides token counting and token-boundary truncation
type TokenCounter struct {
	codec Codec
}

// NewTokenCounter creates a counter backed by tiktoken's cl100k_base encoding
func NewTokenCounter() (*TokenCounter, error) {
	encoder, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", DefaultEncoding, err)
	}
	return &TokenCounter{codec: tiktokenCodec{encoder: encoder}}, nil
}

// NewRuneCounter counts one token per rune
func NewRuneCounter() *TokenCounter {
	return &TokenCounter{codec: runeCodec{}}
}

// NewWithCodec wraps an arbitrary codec
func NewWithCodec(codec Codec) *TokenCounter {
	return &TokenCounter{codec: codec}
}

// Count returns the number of tokens in text
func (tc *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(tc.codec.Encode(text))
}

// TruncateTo keeps the first maxTokens tokens of text. Text already within
// the budget is returned unchanged. When the cut lands inside a multibyte
// character, tokens are dropped until the prefix decodes to valid UTF-8 that
// re-encodes within maxTokens.
func (tc *TokenCounter) TruncateTo(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := tc.codec.Encode(text)
	if len(tokens) <= maxTokens {
		return text
	}
	for n := maxTokens; n > 0; n-- {
		prefix := tc.codec.Decode(tokens[:n])
		if utf8.ValidString(prefix) && tc.Count(prefix) <= maxTokens {
			return prefix
		}
	}
	return ""
}

type tiktokenCodec struct {
	encoder *tiktoken.Tiktoken
}

func (c tiktokenCodec) Encode(text string) []int {
	return c.encoder.Encode(text, nil, nil)
}

func (c tiktokenCodec) Decode(tokens []int) string {
	return c.encoder.Decode(tokens)
}

type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, t := range tokens {
		runes[i] = rune(t)
	}
	return string(runes)
}
