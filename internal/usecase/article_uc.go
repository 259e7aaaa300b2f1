package usecase

import (
	"context"
	"errors"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	"editorial-pipeline/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ ArticleUseCase = (*articleUC)(nil)

type ArticleUseCase interface {
	Get(ctx context.Context, id string) (*model.Article, error)
	Edit(ctx context.Context, id string, expectedVersion int64, edit model.ArticleEdit) (*model.Article, error)
	SubmitForReview(ctx context.Context, id string, expectedVersion int64) (*model.Article, error)
	Publish(ctx context.Context, id string, expectedVersion int64) (*model.Article, error)
	Unpublish(ctx context.Context, id string, expectedVersion int64) (*model.Article, error)
	Delete(ctx context.Context, id string, expectedVersion int64) (*model.Article, error)
}

// ArticleStore is the versioned read-modify-write primitive shared by the
// article operations, the scheduler and the persistence stage.
type ArticleStore interface {
	// Create stores a new article. It is a no-op returning the stored copy when the id exists.
	Create(ctx context.Context, tx repository.Tx, a *model.Article) (*model.Article, error)
	// Update applies mutate to a copy of the stored article and writes it only when the
	// stored version still equals *expected. A nil expected skips the check.
	Update(ctx context.Context, tx repository.Tx, id string, expected *int64, mutate func(a *model.Article) error) (*model.Article, error)
}

type articleUC struct {
	articles  repository.ArticleRepository
	schedules repository.ScheduleRepository
	tm        repository.TransactionManager
	now       func() time.Time
	log       *zerolog.Logger
}

func NewArticleUseCase(articles repository.ArticleRepository, schedules repository.ScheduleRepository, tm repository.TransactionManager, logger *zerolog.Logger) *articleUC {
	l := logger.With().Str("component", "articles").Logger()
	return &articleUC{articles: articles, schedules: schedules, tm: tm, now: time.Now, log: &l}
}

func (u *articleUC) Create(ctx context.Context, tx repository.Tx, a *model.Article) (*model.Article, error) {
	now := u.now()
	a.Version = model.InitialArticleVersion
	a.CreatedAt = now
	a.UpdatedAt = now
	created, err := u.articles.Create(ctx, tx, a)
	if err != nil {
		return nil, err
	}
	if !created {
		return u.articles.FindByID(ctx, tx, a.ID)
	}
	metrics.IncArticleWrite("create", "ok")
	return a, nil
}

func (u *articleUC) Update(ctx context.Context, tx repository.Tx, id string, expected *int64, mutate func(a *model.Article) error) (*model.Article, error) {
	cur, err := u.articles.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if expected != nil && cur.Version != *expected {
		metrics.IncArticleWrite("update", "conflict")
		return nil, domain.ErrVersionConflict
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = u.now()
	v, err := u.articles.CompareAndSwap(ctx, tx, next, cur.Version)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.IncArticleWrite("update", "conflict")
		}
		return nil, err
	}
	next.Version = v
	metrics.IncArticleWrite("update", "ok")
	return next, nil
}

func (u *articleUC) Get(ctx context.Context, id string) (*model.Article, error) {
	return u.articles.FindByID(ctx, repository.NoTX, id)
}

func (u *articleUC) Edit(ctx context.Context, id string, expectedVersion int64, edit model.ArticleEdit) (*model.Article, error) {
	return u.Update(ctx, repository.NoTX, id, &expectedVersion, func(a *model.Article) error {
		return a.ApplyEdit(edit)
	})
}

func (u *articleUC) SubmitForReview(ctx context.Context, id string, expectedVersion int64) (*model.Article, error) {
	return u.Update(ctx, repository.NoTX, id, &expectedVersion, (*model.Article).SubmitForReview)
}

// Publish publishes immediately. A pending schedule for the article is discarded.
func (u *articleUC) Publish(ctx context.Context, id string, expectedVersion int64) (*model.Article, error) {
	return u.withIntentCleanup(ctx, id, expectedVersion, func(a *model.Article) error {
		return a.Publish(u.now())
	})
}

func (u *articleUC) Unpublish(ctx context.Context, id string, expectedVersion int64) (*model.Article, error) {
	return u.Update(ctx, repository.NoTX, id, &expectedVersion, (*model.Article).Unpublish)
}

func (u *articleUC) Delete(ctx context.Context, id string, expectedVersion int64) (*model.Article, error) {
	return u.withIntentCleanup(ctx, id, expectedVersion, (*model.Article).Delete)
}

func (u *articleUC) withIntentCleanup(ctx context.Context, id string, expectedVersion int64, mutate func(a *model.Article) error) (*model.Article, error) {
	var out *model.Article
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.Update(ctx, tx, id, &expectedVersion, mutate)
		if err != nil {
			return err
		}
		if err := u.schedules.Delete(ctx, tx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("article_id", id).Str("status", string(out.Status)).Int64("version", out.Version).Msg("article updated")
	return out, nil
}
