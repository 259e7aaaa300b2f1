package stages

import (
	"context"
	"fmt"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
	"editorial-pipeline/internal/usecase"
)

// heroSection marks the image placed above the first section.
const heroSection = -1

func (s *stageSet) imageStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StageImageGeneration
		draft := jc.Artifacts.Draft
		if err := requirePrior(stage, draft != nil, "draft"); err != nil {
			return model.ArtifactDelta{}, err
		}

		style := jc.Job.ImageStyle
		if style == "" {
			style = model.DefaultImageStyle
		}
		set := &model.ImageSet{Images: []model.ImageAsset{}}
		var usage model.StageUsage

		for _, idx := range insertionPoints(len(draft.Sections), s.opts.ImageEveryNSections, s.opts.MaxImages) {
			subject := draft.Title
			if idx != heroSection {
				subject = draft.Sections[idx].Heading
				if subject == "" {
					subject = draft.Title
				}
			}

			if s.deps.Limiter != nil {
				if err := usecase.Require(ctx, s.deps.Limiter, jc.Job.SubmittedBy, model.LimiterImageGeneration); err != nil {
					kind := domain.StageErrExternal
					if _, ok := domain.AsAdmission(err); ok {
						kind = domain.StageErrAdmission
					}
					return model.ArtifactDelta{Usage: usage}, domain.NewStageError(string(stage), kind, err)
				}
			}

			prompt := fmt.Sprintf("Illustration for an article about %q: %s. Style: %s. No text or lettering.", draft.Title, subject, style.PromptHint())
			img, err := s.deps.Images.GenerateImage(ctx, adapter.ImageRequest{Prompt: prompt, Style: string(style), Size: s.opts.ImageSize})
			if err != nil {
				return model.ArtifactDelta{Usage: usage}, domain.NewStageError(string(stage), domain.StageErrExternal, err)
			}
			usage.Images++
			if img.RevisedPrompt != "" {
				prompt = img.RevisedPrompt
			}
			set.Images = append(set.Images, model.ImageAsset{
				SectionIndex: idx,
				URL:          img.URL,
				Prompt:       prompt,
				Alt:          subject,
				Style:        style,
			})
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Images: set}, Usage: usage}, nil
	})
}

// insertionPoints returns the hero slot followed by every nth section, capped at max images.
func insertionPoints(sections, every, max int) []int {
	if max <= 0 {
		return nil
	}
	points := []int{heroSection}
	if every <= 0 {
		return points
	}
	for i := every - 1; i < sections && len(points) < max; i += every {
		points = append(points, i)
	}
	return points
}
