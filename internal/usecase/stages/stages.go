// Package stages holds the eight fixed pipeline stage executors.
package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/usecase"

	"github.com/rs/zerolog"
)

// Tokenizer bounds text to a token budget.
type Tokenizer interface {
	Truncate(text string, maxTokens int) (string, int)
}

// Arming schedules a stored article for publishing.
type Arming interface {
	Arm(ctx context.Context, articleID string, expectedVersion int64, fireAt time.Time) (*model.Article, error)
}

type Deps struct {
	AI        adapter.AIServiceAdapter
	Images    adapter.ImageGenerator
	Web       adapter.WebFetcher
	Tokenizer Tokenizer
	Limiter   usecase.AdmissionUseCase
	Articles  usecase.ArticleStore
	Scheduler Arming
}

type Options struct {
	TextModel           string
	ImageSize           string
	ImageEveryNSections int
	MaxImages           int
	SourceTokenBudget   int
	MaxFacts            int
}

func (o *Options) defaults() {
	if o.ImageEveryNSections <= 0 {
		o.ImageEveryNSections = 3
	}
	if o.MaxImages <= 0 {
		o.MaxImages = 4
	}
	if o.SourceTokenBudget <= 0 {
		o.SourceTokenBudget = 6000
	}
	if o.MaxFacts <= 0 {
		o.MaxFacts = 12
	}
}

// New wires every stage executor.
func New(d Deps, o Options, logger *zerolog.Logger) usecase.StageExecutors {
	o.defaults()
	l := logger.With().Str("component", "stages").Logger()
	s := &stageSet{deps: d, opts: o, log: &l, now: time.Now}
	return usecase.StageExecutors{
		SelectVoiceSource: s.voiceStage(),
		ThemeAnalysis:     s.themeStage(),
		KeywordSelection:  s.keywordStage(),
		WebEnrichment:     s.enrichmentStage(),
		Drafting:          s.draftingStage(),
		ImageGeneration:   s.imageStage(),
		OptimizationPass:  s.optimizationStage(),
		Persistence:       s.persistenceStage(),
	}
}

type stageSet struct {
	deps Deps
	opts Options
	log  *zerolog.Logger
	now  func() time.Time
}

// completeJSON asks the model for a JSON object and decodes it into out.
func (s *stageSet) completeJSON(ctx context.Context, stage model.StageName, system, user string, out any) (model.StageUsage, error) {
	msgs := []adapter.Message{
		{Role: "system", Content: system + "\nRespond with a single JSON object and nothing else."},
		{Role: "user", Content: user},
	}
	text, u, err := s.deps.AI.ChatWithUsage(ctx, s.opts.TextModel, msgs)
	usage := model.StageUsage{TokensIn: u.PromptTokens, TokensOut: u.CompletionTokens}
	if err != nil {
		return usage, domain.NewStageError(string(stage), domain.StageErrExternal, err)
	}
	if err := decodeJSONObject(text, out); err != nil {
		return usage, domain.NewStageError(string(stage), domain.StageErrMalformed, err)
	}
	return usage, nil
}

var errNoJSON = errors.New("model output contains no JSON object")

// decodeJSONObject tolerates code fences and prose around the object.
func decodeJSONObject(text string, out any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return errNoJSON
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

func malformed(stage model.StageName, format string, args ...any) error {
	return domain.NewStageError(string(stage), domain.StageErrMalformed, fmt.Errorf(format, args...))
}

func invalid(stage model.StageName, format string, args ...any) error {
	return domain.NewStageError(string(stage), domain.StageErrValidation, fmt.Errorf(format, args...))
}

// requirePrior fails the stage when an earlier artifact is missing from the context.
func requirePrior(stage model.StageName, ok bool, what string) error {
	if ok {
		return nil
	}
	return invalid(stage, "missing %s from earlier stages", what)
}

func voiceBlock(jc model.JobContext) string {
	v := jc.Artifacts.Voice
	if v == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Author: %s (%s). Tone: %s.\n", v.AuthorName, v.Persona, v.Tone)
	if v.BrandVoice != "" {
		fmt.Fprintf(&b, "Brand voice: %s.\n", v.BrandVoice)
	}
	return b.String()
}

func clampRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
