package adapter

import (
	"context"

	"editorial-pipeline/internal/domain/model"
)

// JobNotifier receives the terminal event of a job.
type JobNotifier interface {
	JobFinished(ctx context.Context, job *model.GenerationJob) error
}
