package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain/ports/adapter"
)

var (
	_ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)
	_ adapter.ImageGenerator   = (*NoopAIAdapter)(nil)
)

// NoopAIAdapter is used in dev mode without provider keys. Every completion is one
// JSON object carrying the fields of all pipeline stages, so a job runs end to end.
type NoopAIAdapter struct {
	delay time.Duration
	tok   *Tokenizer
	log   zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{
		delay: 50 * time.Millisecond,
		tok:   &Tokenizer{},
		log:   logger.With().Str("component", "noop_ai").Logger(),
	}
}

func (a *NoopAIAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(a.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return a.tok.CountMessages(messages), nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := a.wait(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	title := "Untitled"
	if n := len(messages); n > 0 {
		if line := strings.TrimSpace(strings.SplitN(messages[n-1].Content, "\n", 2)[0]); line != "" {
			title = line
		}
	}
	if len(title) > 60 {
		title = title[:60]
	}

	reply := map[string]any{
		"themes":           []string{"overview", "practical tips", "common mistakes"},
		"angle":            "a practical guide",
		"audience":         "general readers",
		"primary":          strings.ToLower(title),
		"secondary":        []string{"guide", "tips"},
		"title":            title,
		"excerpt":          "A short overview of " + title + ".",
		"sections":         noopSections(title),
		"meta_title":       title,
		"meta_description": "Everything you need to know: " + title,
		"slug":             title,
	}
	b, _ := json.Marshal(reply)
	in := a.tok.CountMessages(messages)
	out := a.tok.Count(string(b))
	a.log.Debug().Str("model", model).Int("tokens_in", in).Msg("noop completion")
	return string(b), adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}

func (a *NoopAIAdapter) GenerateImage(ctx context.Context, req adapter.ImageRequest) (adapter.GeneratedImage, error) {
	if err := a.wait(ctx); err != nil {
		return adapter.GeneratedImage{}, err
	}
	return adapter.GeneratedImage{
		URL:           "https://images.invalid/" + uuid.NewString() + ".png",
		RevisedPrompt: req.Prompt,
	}, nil
}

func noopSections(title string) []map[string]string {
	out := make([]map[string]string, 0, 4)
	for i := 1; i <= 4; i++ {
		out = append(out, map[string]string{
			"heading": fmt.Sprintf("Part %d", i),
			"body":    fmt.Sprintf("Notes on %s, part %d.\n\nMore detail follows.", title, i),
		})
	}
	return out
}
