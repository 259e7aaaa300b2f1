package repository

import (
	"context"

	"editorial-pipeline/internal/domain/model"
)

// ReferenceRepository reads the editorial reference data jobs point at.
type ReferenceRepository interface {
	Category(ctx context.Context, tx Tx, id string) (*model.Category, error)
	Author(ctx context.Context, tx Tx, id string) (*model.Author, error)
	Brand(ctx context.Context, tx Tx, id string) (*model.Brand, error)
	KnowledgeSource(ctx context.Context, tx Tx, id string) (*model.KnowledgeSource, error)
	ConversionOffers(ctx context.Context, tx Tx, ids []string) ([]model.ConversionOffer, error)
}
