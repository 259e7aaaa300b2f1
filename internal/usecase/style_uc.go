package usecase

import (
	"context"
	"errors"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
)

// StyleSelector hands out the image style for a new batch of jobs.
// Concurrent submissions may pick the same style; rotation is best-effort.
type StyleSelector struct {
	jobs repository.GenerationJobRepository
}

func NewStyleSelector(jobs repository.GenerationJobRepository) *StyleSelector {
	return &StyleSelector{jobs: jobs}
}

// NextStyle returns the successor of the style used by the most recently completed job.
func (s *StyleSelector) NextStyle(ctx context.Context) (model.ImageStyle, error) {
	last, err := s.jobs.LastCompletedStyle(ctx, repository.NoTX)
	if errors.Is(err, domain.ErrNotFound) {
		return model.DefaultImageStyle, nil
	}
	if err != nil {
		return "", err
	}
	return model.NextImageStyle(last), nil
}
