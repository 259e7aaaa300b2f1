package stages

import (
	"context"
	"fmt"
	"strings"

	"editorial-pipeline/internal/domain/model"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

const maxSecondaryKeywords = 8

func (s *stageSet) themeStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StageThemeAnalysis
		if err := requirePrior(stage, jc.Artifacts.Voice != nil, "voice brief"); err != nil {
			return model.ArtifactDelta{}, err
		}
		system := "You are an editorial strategist for a " + jc.Config.Category.Name + " publication. " +
			`Identify the main themes of the source. Fields: "themes" (3-6 short strings), "angle" (one sentence), "audience" (one phrase).`
		user := fmt.Sprintf("%sSource title: %s\n\n%s", voiceBlock(jc), jc.Artifacts.Voice.SourceTitle, jc.Artifacts.Voice.SourceExcerpt)

		var out model.ThemeAnalysis
		usage, err := s.completeJSON(ctx, stage, system, user, &out)
		if err != nil {
			return model.ArtifactDelta{Usage: usage}, err
		}
		out.Themes = compact(out.Themes)
		if len(out.Themes) == 0 {
			return model.ArtifactDelta{Usage: usage}, malformed(stage, "no themes returned")
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Themes: &out}, Usage: usage}, nil
	})
}

func (s *stageSet) keywordStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StageKeywordSelection
		if err := requirePrior(stage, jc.Artifacts.Themes != nil, "theme analysis"); err != nil {
			return model.ArtifactDelta{}, err
		}
		system := `Choose search keywords for an article. Fields: "primary" (one phrase), "secondary" (up to 8 phrases).`
		user := fmt.Sprintf("Category: %s\nAngle: %s\nAudience: %s\nThemes: %s",
			jc.Config.Category.Name, jc.Artifacts.Themes.Angle, jc.Artifacts.Themes.Audience,
			strings.Join(jc.Artifacts.Themes.Themes, ", "))

		var out model.KeywordSet
		usage, err := s.completeJSON(ctx, stage, system, user, &out)
		if err != nil {
			return model.ArtifactDelta{Usage: usage}, err
		}
		out.Primary = strings.TrimSpace(out.Primary)
		if out.Primary == "" {
			return model.ArtifactDelta{Usage: usage}, malformed(stage, "no primary keyword returned")
		}
		out.Secondary = compact(out.Secondary)
		if len(out.Secondary) > maxSecondaryKeywords {
			out.Secondary = out.Secondary[:maxSecondaryKeywords]
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Keywords: &out}, Usage: usage}, nil
	})
}

// compact trims, drops empties and removes case-insensitive duplicates.
func compact(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
