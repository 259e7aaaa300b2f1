package stages

import (
	"context"
	"fmt"
	"strings"

	"editorial-pipeline/internal/domain/model"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

const (
	maxMetaTitle       = 60
	maxMetaDescription = 160
)

func (s *stageSet) optimizationStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StageOptimizationPass
		draft := jc.Artifacts.Draft
		if err := requirePrior(stage, draft != nil, "draft"); err != nil {
			return model.ArtifactDelta{}, err
		}

		system := fmt.Sprintf(`Write search metadata. Fields: "meta_title" (max %d chars), "meta_description" (max %d chars), "slug" (lowercase, dashes).`,
			maxMetaTitle, maxMetaDescription)
		var b strings.Builder
		fmt.Fprintf(&b, "Title: %s\nExcerpt: %s\n", draft.Title, draft.Excerpt)
		if kw := jc.Artifacts.Keywords; kw != nil {
			fmt.Fprintf(&b, "Primary keyword: %s\n", kw.Primary)
		}
		for _, sec := range draft.Sections {
			fmt.Fprintf(&b, "## %s\n", sec.Heading)
		}

		var out model.Optimization
		usage, err := s.completeJSON(ctx, stage, system, b.String(), &out)
		if err != nil {
			return model.ArtifactDelta{Usage: usage}, err
		}
		normaliseOptimization(&out, draft)
		return model.ArtifactDelta{Artifacts: model.Artifacts{Optimization: &out}, Usage: usage}, nil
	})
}

// normaliseOptimization clamps lengths and falls back to draft fields.
func normaliseOptimization(o *model.Optimization, d *model.Draft) {
	o.MetaTitle = clampRunes(firstOf(o.MetaTitle, d.Title), maxMetaTitle)
	o.MetaDescription = clampRunes(firstOf(o.MetaDescription, d.Excerpt), maxMetaDescription)
	o.Slug = model.Slugify(firstOf(o.Slug, d.Title))
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
