package stages

import (
	"context"
	"strings"

	"editorial-pipeline/internal/domain/model"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

const maxFactsPerPage = 4

func (s *stageSet) enrichmentStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		out := &model.Enrichment{Facts: []model.Fact{}}
		if s.deps.Web == nil {
			return model.ArtifactDelta{Artifacts: model.Artifacts{Enrichment: out}}, nil
		}

		for _, url := range enrichmentURLs(jc.Config) {
			if len(out.Facts) >= s.opts.MaxFacts {
				break
			}
			page, err := s.deps.Web.Fetch(ctx, url)
			if err != nil {
				if ctx.Err() != nil {
					return model.ArtifactDelta{}, ctx.Err()
				}
				s.log.Warn().Err(err).Str("job_id", jc.Job.ID).Str("url", url).Msg("enrichment fetch failed")
				continue
			}
			taken := 0
			for _, p := range page.Paragraphs {
				if taken >= maxFactsPerPage || len(out.Facts) >= s.opts.MaxFacts {
					break
				}
				out.Facts = append(out.Facts, model.Fact{SourceURL: page.URL, Title: page.Title, Text: p})
				taken++
			}
		}
		return model.ArtifactDelta{Artifacts: model.Artifacts{Enrichment: out}}, nil
	})
}

func enrichmentURLs(cfg model.JobConfig) []string {
	seen := map[string]bool{}
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] || !(strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	add(cfg.KnowledgeSource.URL)
	for _, o := range cfg.Offers {
		add(o.URL)
	}
	return urls
}
