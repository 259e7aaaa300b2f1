package stages

import (
	"context"
	"strings"

	"editorial-pipeline/internal/domain/model"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

func (s *stageSet) voiceStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		ks := jc.Config.KnowledgeSource
		body := strings.TrimSpace(ks.Body)
		if body == "" {
			return model.ArtifactDelta{}, invalid(model.StageSelectVoiceSource, "knowledge source %s has no content", ks.ID)
		}

		excerpt, tokens := body, 0
		if s.deps.Tokenizer != nil {
			excerpt, tokens = s.deps.Tokenizer.Truncate(body, s.opts.SourceTokenBudget)
		}

		tone := jc.Config.Author.Tone
		if tone == "" {
			tone = jc.Config.Brand.Voice
		}
		brief := &model.VoiceBrief{
			AuthorName:    jc.Config.Author.Name,
			Persona:       jc.Config.Author.Persona,
			Tone:          tone,
			BrandVoice:    jc.Config.Brand.Voice,
			SourceTitle:   ks.Title,
			SourceExcerpt: excerpt,
			SourceTokens:  tokens,
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Voice: brief}}, nil
	})
}
