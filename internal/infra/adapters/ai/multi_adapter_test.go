package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	ai "editorial-pipeline/internal/infra/adapters/ai"
)

type stubAI struct {
	name         string
	ctN          int
	cwuN         int
	lastModelCT  string
	lastModelCWU string
}

func (s *stubAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	s.ctN++
	s.lastModelCT = model
	return 1, nil
}
func (s *stubAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	s.cwuN++
	s.lastModelCWU = model
	return "ok", adapter.Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}

func TestRouting_ExplicitMap_Heuristics_And_Fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	open := &stubAI{name: "openai"}
	gem := &stubAI{name: "gemini"}

	m := ai.NewMultiAIAdapter(
		"openai",
		map[string]adapter.AIServiceAdapter{"openai": open, "gemini": gem},
		map[string]string{"custom-x": "gemini"},
	)

	// explicit map wins
	_, _ = m.CountTokens(ctx, "custom-x", nil)
	if gem.ctN != 1 || open.ctN != 0 {
		t.Fatalf("explicit map should route to gemini, got open:%d gem:%d", open.ctN, gem.ctN)
	}
	open.ctN, gem.ctN = 0, 0

	// gpt-* -> openai
	_, _, _ = m.ChatWithUsage(ctx, "gpt-4o-mini", nil)
	if open.cwuN != 1 || gem.cwuN != 0 {
		t.Fatalf("heuristic gpt-* should go openai")
	}
	open.cwuN, gem.cwuN = 0, 0

	// gemini-* -> gemini
	_, _, _ = m.ChatWithUsage(ctx, "gemini-1.5-flash", nil)
	if gem.cwuN != 1 || open.cwuN != 0 {
		t.Fatalf("heuristic gemini-* should go gemini")
	}

	// unknown -> default provider (openai)
	open.ctN, gem.ctN = 0, 0
	_, _ = m.CountTokens(ctx, "unknown", nil)
	if open.ctN != 1 || gem.ctN != 0 {
		t.Fatalf("unknown model should go to default provider (openai)")
	}
}

func TestRouting_MissingProviderFallsBack(t *testing.T) {
	t.Parallel()
	gem := &stubAI{name: "gemini"}
	m := ai.NewMultiAIAdapter("gemini", map[string]adapter.AIServiceAdapter{"gemini": gem}, nil)

	if _, _, err := m.ChatWithUsage(context.Background(), "gpt-4o", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gem.cwuN != 1 {
		t.Fatalf("expected the only provider to serve gpt-* models")
	}

	empty := ai.NewMultiAIAdapter("openai", nil, nil)
	if _, _, err := empty.ChatWithUsage(context.Background(), "gpt-4o", nil); !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestLimitedAI_RespectsContext(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	inner := &blockingAI{entered: make(chan struct{}), release: block}
	l := ai.NewLimitedAI(inner, 1)

	go func() { _, _, _ = l.ChatWithUsage(context.Background(), "m", nil) }()
	<-inner.entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := l.ChatWithUsage(ctx, "m", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled while the slot is held, got %v", err)
	}
	close(block)
}

type blockingAI struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return 0, nil
}
func (b *blockingAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	b.entered <- struct{}{}
	<-b.release
	return "", adapter.Usage{}, nil
}

func TestNoopAI_ReplyFitsEveryStage(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	n := ai.NewNoopAIAdapter(&logger)

	text, u, err := n.ChatWithUsage(context.Background(), "", []adapter.Message{{Role: "user", Content: "Brewing coffee\nbody"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.PromptTokens == 0 || u.CompletionTokens == 0 {
		t.Errorf("expected usage to be reported, got %+v", u)
	}
	var draft model.Draft
	if err := jsonDecode(text, &draft); err != nil || draft.Title != "Brewing coffee" || len(draft.Sections) == 0 {
		t.Fatalf("reply does not decode as a draft: %+v, %v", draft, err)
	}
	var kw model.KeywordSet
	if err := jsonDecode(text, &kw); err != nil || kw.Primary == "" {
		t.Fatalf("reply does not decode as keywords: %+v, %v", kw, err)
	}
	img, err := n.GenerateImage(context.Background(), adapter.ImageRequest{Prompt: "p"})
	if err != nil || !strings.HasPrefix(img.URL, "https://") {
		t.Fatalf("unexpected image: %+v, %v", img, err)
	}
}

func TestTokenizer_FallbackTruncate(t *testing.T) {
	t.Parallel()
	var tok ai.Tokenizer
	text := strings.Repeat("abcd", 100)
	cut, n := tok.Truncate(text, 10)
	if len(cut) != 40 || n != 10 {
		t.Fatalf("expected 40 bytes / 10 tokens, got %d / %d", len(cut), n)
	}
	same, n := tok.Truncate("short", 10)
	if same != "short" || n != 2 {
		t.Fatalf("expected untouched text, got %q / %d", same, n)
	}
}

func jsonDecode(s string, out any) error { return json.Unmarshal([]byte(s), out) }
