package ai

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"editorial-pipeline/internal/domain/ports/adapter"
)

// Tokenizer counts and truncates text with the model's BPE encoding.
// Without an encoding it falls back to roughly four bytes per token.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTokenizer(model string) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

func (t *Tokenizer) Count(text string) int {
	if t.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens and returns the kept token count.
func (t *Tokenizer) Truncate(text string, maxTokens int) (string, int) {
	if maxTokens <= 0 {
		return text, t.Count(text)
	}
	if t.enc == nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text, t.Count(text)
		}
		cut := text[:limit]
		for !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		return cut, maxTokens
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, len(tokens)
	}
	return t.enc.Decode(tokens[:maxTokens]), maxTokens
}

// CountMessages applies the chat framing overhead of OpenAI models.
func (t *Tokenizer) CountMessages(messages []adapter.Message) int {
	n := 3
	for _, m := range messages {
		n += 4 + t.Count(m.Role) + t.Count(m.Content)
	}
	return n
}
