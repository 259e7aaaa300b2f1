package stages

import (
	"context"
	"fmt"
	"strings"

	"editorial-pipeline/internal/domain/model"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

func (s *stageSet) draftingStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StageDrafting
		acc := jc.Artifacts
		if err := requirePrior(stage, acc.Voice != nil && acc.Themes != nil && acc.Keywords != nil, "voice, themes or keywords"); err != nil {
			return model.ArtifactDelta{}, err
		}

		system := fmt.Sprintf("You write long-form articles for %s in the voice described below. %s"+
			`Fields: "title", "excerpt" (max 2 sentences), "sections" (array of {"heading","body"}; separate paragraphs in body with a blank line).`,
			jc.Config.Brand.Name, voiceBlock(jc))
		user := draftPrompt(jc)

		var out model.Draft
		usage, err := s.completeJSON(ctx, stage, system, user, &out)
		if err != nil {
			return model.ArtifactDelta{Usage: usage}, err
		}
		out.Title = strings.TrimSpace(out.Title)
		sections := out.Sections[:0]
		for _, sec := range out.Sections {
			if strings.TrimSpace(sec.Body) != "" {
				sections = append(sections, sec)
			}
		}
		out.Sections = sections
		if out.Title == "" || len(out.Sections) == 0 {
			return model.ArtifactDelta{Usage: usage}, malformed(stage, "draft has no title or sections")
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Draft: &out}, Usage: usage}, nil
	})
}

func draftPrompt(jc model.JobContext) string {
	acc := jc.Artifacts
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", jc.Config.Category.Name)
	fmt.Fprintf(&b, "Angle: %s\nAudience: %s\n", acc.Themes.Angle, acc.Themes.Audience)
	fmt.Fprintf(&b, "Themes: %s\n", strings.Join(acc.Themes.Themes, ", "))
	fmt.Fprintf(&b, "Primary keyword: %s\n", acc.Keywords.Primary)
	if len(acc.Keywords.Secondary) > 0 {
		fmt.Fprintf(&b, "Secondary keywords: %s\n", strings.Join(acc.Keywords.Secondary, ", "))
	}
	if acc.Enrichment != nil && len(acc.Enrichment.Facts) > 0 {
		b.WriteString("Supporting facts:\n")
		for _, f := range acc.Enrichment.Facts {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Text, f.SourceURL)
		}
	}
	for _, o := range jc.Config.Offers {
		fmt.Fprintf(&b, "Mention the offer %q naturally where relevant.\n", o.Title)
	}
	fmt.Fprintf(&b, "\nSource material (%s):\n%s", acc.Voice.SourceTitle, acc.Voice.SourceExcerpt)
	return b.String()
}
