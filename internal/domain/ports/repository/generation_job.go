package repository

import (
	"context"
	"time"

	"editorial-pipeline/internal/domain/model"
)

type JobFilter struct {
	Status      model.JobStatus
	SubmittedBy string
	Since       *time.Time
	Limit       int
}

type GenerationJobRepository interface {
	// Create inserts the job and all of its stage rows.
	Create(ctx context.Context, tx Tx, job *model.GenerationJob) error
	// FindByID returns the job with its stages ordered by ordinal.
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationJob, error)
	// Save persists job-level fields. It never overwrites cancel_requested.
	Save(ctx context.Context, tx Tx, job *model.GenerationJob) error
	SaveStage(ctx context.Context, tx Tx, stage *model.GenerationStage) error
	// RequestCancel flags a non-terminal job. It reports false when the job was already terminal.
	RequestCancel(ctx context.Context, tx Tx, id string) (bool, error)
	CancelRequested(ctx context.Context, tx Tx, id string) (bool, error)
	// ClearCancel drops a pending cancel request, used when a job is resumed.
	ClearCancel(ctx context.Context, tx Tx, id string) error
	// LastCompletedStyle returns the image style of the most recently completed job.
	LastCompletedStyle(ctx context.Context, tx Tx) (model.ImageStyle, error)
	List(ctx context.Context, tx Tx, f JobFilter) ([]*model.GenerationJob, error)
}
