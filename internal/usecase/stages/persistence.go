package stages

import (
	"context"
	"errors"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
)

func (s *stageSet) persistenceStage() portuc.StageExecutor {
	return portuc.StageExecutorFunc(func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
		const stage = model.StagePersistence
		job := jc.Job

		draft, err := model.AssembleArticle(&job, jc.Config, jc.Artifacts)
		if err != nil {
			return model.ArtifactDelta{}, domain.NewStageError(string(stage), domain.StageErrValidation, err)
		}
		draft.Status = model.ArticleStatusDraft

		// the id is derived from the job, so a re-run finds the article it already created
		stored, err := s.deps.Articles.Create(ctx, repository.NoTX, draft)
		if err != nil {
			return model.ArtifactDelta{}, domain.NewStageError(string(stage), domain.StageErrExternal, err)
		}

		final, err := s.applyStrategy(ctx, job, stored)
		if err != nil {
			kind := domain.StageErrExternal
			if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrInvalidTransition) {
				kind = domain.StageErrValidation
			}
			return model.ArtifactDelta{}, domain.NewStageError(string(stage), kind, err)
		}

		res := &model.PersistResult{ArticleID: final.ID, Version: final.Version, Status: final.Status}
		s.log.Info().Str("job_id", job.ID).Str("article_id", final.ID).Str("status", string(final.Status)).
			Int64("version", final.Version).Msg("article persisted")
		return model.ArtifactDelta{Artifacts: model.Artifacts{Persisted: res}}, nil
	})
}

func (s *stageSet) applyStrategy(ctx context.Context, job model.GenerationJob, a *model.Article) (*model.Article, error) {
	switch job.Strategy {
	case model.StrategyPublishNow:
		if a.Status == model.ArticleStatusPublished {
			return a, nil
		}
		return s.publish(ctx, a)

	case model.StrategyScheduled:
		if a.Status == model.ArticleStatusScheduled || a.Status == model.ArticleStatusPublished {
			return a, nil
		}
		if job.PublishAt == nil || !job.PublishAt.After(s.now()) {
			// the target time passed while the job ran; a late intent fires immediately
			s.log.Warn().Str("job_id", job.ID).Msg("publish time already passed, publishing now")
			return s.publish(ctx, a)
		}
		if s.deps.Scheduler == nil {
			return nil, domain.ErrInvalidExecContext
		}
		return s.deps.Scheduler.Arm(ctx, a.ID, a.Version, *job.PublishAt)
	}
	return a, nil
}

func (s *stageSet) publish(ctx context.Context, a *model.Article) (*model.Article, error) {
	expected := a.Version
	return s.deps.Articles.Update(ctx, repository.NoTX, a.ID, &expected, func(cur *model.Article) error {
		return cur.Publish(s.now())
	})
}
