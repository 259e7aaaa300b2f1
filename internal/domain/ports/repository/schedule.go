package repository

import (
	"context"
	"time"

	"editorial-pipeline/internal/domain/model"
)

type ScheduleRepository interface {
	// Upsert replaces any existing intent for the article.
	Upsert(ctx context.Context, tx Tx, in *model.ScheduledPublishIntent) error
	Delete(ctx context.Context, tx Tx, articleID string) error
	// Lock claims the intent row inside tx, skipping rows held by another worker.
	// It returns domain.ErrNotFound when the intent is gone or already claimed.
	Lock(ctx context.Context, tx Tx, articleID string) (*model.ScheduledPublishIntent, error)
	ListDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.ScheduledPublishIntent, error)
	// NextFireAt returns the earliest pending fire time, or domain.ErrNotFound.
	NextFireAt(ctx context.Context, tx Tx) (time.Time, error)
}
