package usecase

import (
	"context"
	"strings"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// SubmitRequest fans out into one job per knowledge source.
type SubmitRequest struct {
	CategoryID         string
	AuthorID           string
	BrandID            string
	SubmittedBy        string
	KnowledgeSourceIDs []string
	ConversionOfferIDs []string
	Strategy           model.PublishStrategy
	PublishAt          *time.Time
}

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	Submit(ctx context.Context, req SubmitRequest) ([]*model.GenerationJob, error)
	Get(ctx context.Context, id string) (*model.GenerationJob, error)
	List(ctx context.Context, f repository.JobFilter) ([]*model.GenerationJob, error)
	// Resume continues a failed or cancelled job from its first non-succeeded stage.
	Resume(ctx context.Context, id string) (*model.GenerationJob, error)
	// Salvage stores a DRAFT article from whatever a failed or cancelled job produced.
	Salvage(ctx context.Context, id string) (*model.Article, error)
	Cancel(ctx context.Context, id string) (*model.GenerationJob, error)
}

type jobUC struct {
	jobs     repository.GenerationJobRepository
	refs     repository.ReferenceRepository
	tm       repository.TransactionManager
	queue    adapter.SignalQueue
	limiter  AdmissionUseCase
	styles   *StyleSelector
	articles ArticleStore
	now      func() time.Time
	log      *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.GenerationJobRepository,
	refs repository.ReferenceRepository,
	tm repository.TransactionManager,
	queue adapter.SignalQueue,
	limiter AdmissionUseCase,
	styles *StyleSelector,
	articles ArticleStore,
	logger *zerolog.Logger,
) *jobUC {
	l := logger.With().Str("component", "jobs").Logger()
	return &jobUC{
		jobs: jobs, refs: refs, tm: tm, queue: queue, limiter: limiter,
		styles: styles, articles: articles, now: time.Now, log: &l,
	}
}

func (u *jobUC) Submit(ctx context.Context, req SubmitRequest) ([]*model.GenerationJob, error) {
	if err := u.validate(ctx, &req); err != nil {
		return nil, err
	}
	if err := Require(ctx, u.limiter, req.SubmittedBy, model.LimiterJobSubmission); err != nil {
		return nil, err
	}
	style, err := u.styles.NextStyle(ctx)
	if err != nil {
		return nil, err
	}

	now := u.now()
	jobs := make([]*model.GenerationJob, 0, len(req.KnowledgeSourceIDs))
	for _, ks := range req.KnowledgeSourceIDs {
		j, err := model.NewGenerationJob(model.JobSpec{
			CategoryID:         req.CategoryID,
			AuthorID:           req.AuthorID,
			BrandID:            req.BrandID,
			SubmittedBy:        req.SubmittedBy,
			KnowledgeSourceID:  ks,
			ConversionOfferIDs: req.ConversionOfferIDs,
			ImageStyle:         style,
			Strategy:           req.Strategy,
			PublishAt:          req.PublishAt,
		}, now)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, j := range jobs {
			if err := u.jobs.Create(ctx, tx, j); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, j := range jobs {
		u.kick(ctx, j)
	}
	u.log.Info().Str("submitted_by", req.SubmittedBy).Int("jobs", len(jobs)).Str("style", string(style)).Msg("jobs submitted")
	return jobs, nil
}

func (u *jobUC) validate(ctx context.Context, req *SubmitRequest) error {
	req.KnowledgeSourceIDs = dedupe(req.KnowledgeSourceIDs)
	if len(req.KnowledgeSourceIDs) == 0 {
		return domain.Invalid("knowledge_source_ids", "at least one knowledge source is required")
	}
	if req.Strategy == "" {
		req.Strategy = model.StrategyDraft
	}
	strategy, err := model.ParsePublishStrategy(string(req.Strategy))
	if err != nil {
		return err
	}
	req.Strategy = strategy
	if strategy == model.StrategyScheduled {
		if req.PublishAt == nil || !req.PublishAt.After(u.now()) {
			return domain.Invalid("publish_at", "must be in the future for SCHEDULED strategy")
		}
	} else {
		req.PublishAt = nil
	}

	if _, err := u.refs.Category(ctx, repository.NoTX, req.CategoryID); err != nil {
		return missing("category_id", err)
	}
	if _, err := u.refs.Author(ctx, repository.NoTX, req.AuthorID); err != nil {
		return missing("author_id", err)
	}
	if _, err := u.refs.Brand(ctx, repository.NoTX, req.BrandID); err != nil {
		return missing("brand_id", err)
	}
	for _, id := range req.KnowledgeSourceIDs {
		if _, err := u.refs.KnowledgeSource(ctx, repository.NoTX, id); err != nil {
			return missing("knowledge_source_ids", err)
		}
	}
	req.ConversionOfferIDs = dedupe(req.ConversionOfferIDs)
	_, err = loadOffers(ctx, u.refs, req.ConversionOfferIDs)
	return err
}

// kick signals the first pending stage. A job whose signal cannot be queued is failed so it stays resumable.
func (u *jobUC) kick(ctx context.Context, j *model.GenerationJob) {
	err := u.queue.Publish(ctx, model.NewStageSignal(j.ID, j.NextOrdinal()))
	if err == nil {
		return
	}
	u.log.Error().Err(err).Str("job_id", j.ID).Msg("publish stage signal")
	now := u.now()
	j.Status = model.JobStatusFailed
	j.LastError = "stage signal not queued: " + err.Error()
	j.CompletedAt = &now
	if err := u.jobs.Save(ctx, repository.NoTX, j); err != nil {
		u.log.Error().Err(err).Str("job_id", j.ID).Msg("mark unsignalled job failed")
	}
}

func (u *jobUC) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, id)
}

func (u *jobUC) List(ctx context.Context, f repository.JobFilter) ([]*model.GenerationJob, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return u.jobs.List(ctx, repository.NoTX, f)
}

func (u *jobUC) Resume(ctx context.Context, id string) (*model.GenerationJob, error) {
	j, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if j.Status != model.JobStatusFailed && j.Status != model.JobStatusCancelled {
		return nil, domain.ErrJobNotResumable
	}
	if err := Require(ctx, u.limiter, j.SubmittedBy, model.LimiterJobSubmission); err != nil {
		return nil, err
	}
	if err := j.Resume(); err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for i := range j.Stages {
			if j.Stages[i].Succeeded() {
				continue
			}
			if err := u.jobs.SaveStage(ctx, tx, &j.Stages[i]); err != nil {
				return err
			}
		}
		if err := u.jobs.ClearCancel(ctx, tx, j.ID); err != nil {
			return err
		}
		return u.jobs.Save(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	u.kick(ctx, j)
	u.log.Info().Str("job_id", j.ID).Int("attempt", j.Attempts).Int("from_ordinal", j.NextOrdinal()).Msg("job resumed")
	return j, nil
}

func (u *jobUC) Salvage(ctx context.Context, id string) (*model.Article, error) {
	j, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if j.Status != model.JobStatusFailed && j.Status != model.JobStatusCancelled {
		return nil, domain.ErrNotSalvageable
	}
	cfg, err := loadJobConfig(ctx, u.refs, j)
	if err != nil {
		return nil, err
	}
	acc, err := j.AccumulatedArtifacts()
	if err != nil {
		return nil, err
	}
	draft, err := model.AssembleArticle(j, cfg, acc)
	if err != nil {
		return nil, err
	}
	draft.Status = model.ArticleStatusDraft

	var out *model.Article
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.articles.Create(ctx, tx, draft)
		if err != nil {
			return err
		}
		j.ArticleID = &a.ID
		out = a
		return u.jobs.Save(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("job_id", j.ID).Str("article_id", out.ID).Msg("job salvaged")
	return out, nil
}

func (u *jobUC) Cancel(ctx context.Context, id string) (*model.GenerationJob, error) {
	ok, err := u.jobs.RequestCancel(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrJobTerminal
	}
	j, err := u.jobs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("job_id", id).Msg("cancel requested")
	return j, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
