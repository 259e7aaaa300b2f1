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

// FireOutcome reports what a fired intent did.
type FireOutcome string

const (
	FirePublished FireOutcome = "published"
	FireStale     FireOutcome = "stale"   // article changed after arming
	FireSkipped   FireOutcome = "skipped" // intent claimed elsewhere or no longer present
)

// Compile-time check
var _ ScheduleUseCase = (*scheduleUC)(nil)

type ScheduleUseCase interface {
	// Arm schedules the article to publish at fireAt, guarded by expectedVersion.
	Arm(ctx context.Context, articleID string, expectedVersion int64, fireAt time.Time) (*model.Article, error)
	// Disarm cancels a pending schedule and returns the article to DRAFT.
	Disarm(ctx context.Context, articleID string, expectedVersion int64) (*model.Article, error)
	// Fire publishes the article if the intent armed at armedVersion is due and the article is
	// unchanged since arming. A fired intent is consumed; an intent that is not due or was re-armed
	// is left in place.
	Fire(ctx context.Context, articleID string, armedVersion int64) (FireOutcome, error)
	FireDue(ctx context.Context, limit int) (int, error)
	NextFireAt(ctx context.Context) (time.Time, error)
	// Wake is signalled whenever a new intent is armed.
	Wake() <-chan struct{}
}

type scheduleUC struct {
	articles  ArticleStore
	schedules repository.ScheduleRepository
	tm        repository.TransactionManager
	wake      chan struct{}
	now       func() time.Time
	log       *zerolog.Logger
}

func NewScheduleUseCase(articles ArticleStore, schedules repository.ScheduleRepository, tm repository.TransactionManager, logger *zerolog.Logger) *scheduleUC {
	l := logger.With().Str("component", "scheduler").Logger()
	return &scheduleUC{
		articles:  articles,
		schedules: schedules,
		tm:        tm,
		wake:      make(chan struct{}, 1),
		now:       time.Now,
		log:       &l,
	}
}

func (u *scheduleUC) Wake() <-chan struct{} { return u.wake }

func (u *scheduleUC) Arm(ctx context.Context, articleID string, expectedVersion int64, fireAt time.Time) (*model.Article, error) {
	var out *model.Article
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.arm(ctx, tx, articleID, expectedVersion, fireAt)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	u.signal()
	return out, nil
}

// arm stores the intent with the version the arming write produced, so any later edit invalidates it.
func (u *scheduleUC) arm(ctx context.Context, tx repository.Tx, articleID string, expectedVersion int64, fireAt time.Time) (*model.Article, error) {
	now := u.now()
	if !fireAt.After(now) {
		return nil, domain.ErrFireTimeNotFuture
	}
	a, err := u.articles.Update(ctx, tx, articleID, &expectedVersion, func(a *model.Article) error {
		return a.Schedule(fireAt)
	})
	if err != nil {
		return nil, err
	}
	in := &model.ScheduledPublishIntent{ArticleID: a.ID, Version: a.Version, FireAt: fireAt, CreatedAt: now}
	if err := u.schedules.Upsert(ctx, tx, in); err != nil {
		return nil, err
	}
	metrics.IncSchedule("armed")
	u.log.Info().Str("article_id", a.ID).Int64("version", a.Version).Time("fire_at", fireAt).Msg("publish armed")
	return a, nil
}

func (u *scheduleUC) Disarm(ctx context.Context, articleID string, expectedVersion int64) (*model.Article, error) {
	var out *model.Article
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		a, err := u.articles.Update(ctx, tx, articleID, &expectedVersion, (*model.Article).Unschedule)
		if err != nil {
			return err
		}
		if err := u.schedules.Delete(ctx, tx, articleID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncSchedule("disarmed")
	u.log.Info().Str("article_id", articleID).Int64("version", out.Version).Msg("publish disarmed")
	return out, nil
}

func (u *scheduleUC) Fire(ctx context.Context, articleID string, armedVersion int64) (FireOutcome, error) {
	outcome := FireSkipped
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		in, err := u.schedules.Lock(ctx, tx, articleID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if in.Version != armedVersion || in.FireAt.After(u.now()) {
			u.log.Debug().Str("article_id", in.ArticleID).Int64("armed_version", armedVersion).
				Int64("intent_version", in.Version).Time("fire_at", in.FireAt).
				Msg("intent re-armed or not yet due, left in place")
			return nil
		}

		_, err = u.articles.Update(ctx, tx, in.ArticleID, &in.Version, func(a *model.Article) error {
			return a.PublishScheduled(u.now())
		})
		switch {
		case err == nil:
			outcome = FirePublished
		case errors.Is(err, domain.ErrVersionConflict),
			errors.Is(err, domain.ErrNotScheduled),
			errors.Is(err, domain.ErrNotFound):
			outcome = FireStale
			u.log.Warn().Err(err).Str("article_id", in.ArticleID).Int64("armed_version", in.Version).
				Msg("scheduled publish skipped, article changed since arming")
		default:
			return err
		}
		return u.schedules.Delete(ctx, tx, in.ArticleID)
	})
	if err != nil {
		u.log.Error().Err(err).Str("article_id", articleID).Msg("fire failed")
		return FireSkipped, err
	}
	metrics.IncSchedule("fire_" + string(outcome))
	if outcome == FirePublished {
		u.log.Info().Str("article_id", articleID).Msg("scheduled publish fired")
	}
	return outcome, nil
}

func (u *scheduleUC) FireDue(ctx context.Context, limit int) (int, error) {
	due, err := u.schedules.ListDue(ctx, repository.NoTX, u.now(), limit)
	if err != nil {
		return 0, err
	}
	fired := 0
	for _, in := range due {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}
		outcome, err := u.Fire(ctx, in.ArticleID, in.Version)
		if err != nil {
			continue
		}
		if outcome != FireSkipped {
			fired++
		}
	}
	return fired, nil
}

func (u *scheduleUC) NextFireAt(ctx context.Context) (time.Time, error) {
	return u.schedules.NextFireAt(ctx, repository.NoTX)
}

func (u *scheduleUC) signal() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}
