package usecase

import (
	"context"
	"errors"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

// loadJobConfig resolves the reference data a job points at. Missing entities become validation errors.
func loadJobConfig(ctx context.Context, refs repository.ReferenceRepository, job *model.GenerationJob) (model.JobConfig, error) {
	var cfg model.JobConfig

	cat, err := refs.Category(ctx, repository.NoTX, job.CategoryID)
	if err != nil {
		return cfg, missing("category_id", err)
	}
	author, err := refs.Author(ctx, repository.NoTX, job.AuthorID)
	if err != nil {
		return cfg, missing("author_id", err)
	}
	brand, err := refs.Brand(ctx, repository.NoTX, job.BrandID)
	if err != nil {
		return cfg, missing("brand_id", err)
	}
	ks, err := refs.KnowledgeSource(ctx, repository.NoTX, job.KnowledgeSourceID)
	if err != nil {
		return cfg, missing("knowledge_source_id", err)
	}
	offers, err := loadOffers(ctx, refs, job.ConversionOfferIDs)
	if err != nil {
		return cfg, err
	}

	cfg.Category = *cat
	cfg.Author = *author
	cfg.Brand = *brand
	cfg.KnowledgeSource = *ks
	cfg.Offers = offers
	return cfg, nil
}

func loadOffers(ctx context.Context, refs repository.ReferenceRepository, ids []string) ([]model.ConversionOffer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	offers, err := refs.ConversionOffers(ctx, repository.NoTX, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(offers))
	for _, o := range offers {
		found[o.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, domain.Invalid("conversion_offer_ids", "unknown offer "+id)
		}
	}
	return offers, nil
}

func missing(field string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Invalid(field, "not found")
	}
	return err
}
