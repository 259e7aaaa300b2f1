package usecase

import (
	"context"

	"editorial-pipeline/internal/domain/model"
)

// StageExecutor runs one pipeline stage. It reads the accumulated context and returns
// its artifact delta; it never writes the job store.
type StageExecutor interface {
	Execute(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error)
}

// StageExecutorFunc adapts a function to StageExecutor.
type StageExecutorFunc func(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error)

func (f StageExecutorFunc) Execute(ctx context.Context, jc model.JobContext) (model.ArtifactDelta, error) {
	return f(ctx, jc)
}
