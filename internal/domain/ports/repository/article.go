package repository

import (
	"context"

	"editorial-pipeline/internal/domain/model"
)

type ArticleRepository interface {
	// Create inserts a new article at its initial version. It reports false when the id already exists.
	Create(ctx context.Context, tx Tx, a *model.Article) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Article, error)
	// CompareAndSwap writes a when the stored version equals expectedVersion and
	// increments the version in the same statement. It returns the new version or
	// domain.ErrVersionConflict.
	CompareAndSwap(ctx context.Context, tx Tx, a *model.Article, expectedVersion int64) (int64, error)
}
