// Package tokenizer turns text into the ragged integer sequences the
// masked batch engine consumes. Sentences of different lengths encode
// to token rows of different lengths; the engine's padding constructor
// takes it from there.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is specified.
const DefaultEncoding = "cl100k_base"

// TikToken wraps the pkoukk/tiktoken-go library for OpenAI BPE
// encodings (cl100k_base, p50k_base, r50k_base).
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a tokenizer with the specified encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode converts text to token IDs.
func (t *TikToken) Encode(text string) []int64 {
	tokens := t.encoding.Encode(text, nil, nil)
	result := make([]int64, len(tokens))
	for i, tok := range tokens {
		result[i] = int64(tok)
	}
	return result
}

// EncodeBatch converts texts to ragged rows of token IDs, one row per
// text, preserving order.
func (t *TikToken) EncodeBatch(texts []string) [][]int64 {
	rows := make([][]int64, len(texts))
	for i, text := range texts {
		rows[i] = t.Encode(text)
	}
	return rows
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(tokens []int64) string {
	intTokens := make([]int, len(tokens))
	for i, tok := range tokens {
		intTokens[i] = int(tok)
	}
	return t.encoding.Decode(intTokens)
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}

// VocabSize returns the total vocabulary size. tiktoken-go does not
// expose it directly, so the known sizes are hardcoded per encoding.
func (t *TikToken) VocabSize() int {
	switch t.name {
	case "cl100k_base":
		return 100256
	case "p50k_base", "r50k_base":
		return 50257
	default:
		return 100000
	}
}
