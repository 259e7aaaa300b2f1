package ai

import (
	"context"

	"editorial-pipeline/internal/domain/ports/adapter"
)

var (
	_ adapter.AIServiceAdapter = (*limitedAI)(nil)
	_ adapter.ImageGenerator   = (*limitedImages)(nil)
)

// semaphore bounds concurrent provider calls per process. Acquire gives up when ctx ends.
type semaphore chan struct{}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() { <-s }

type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   semaphore
}

func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{inner: inner, sem: make(semaphore, maxConcurrent)}
}

func (l *limitedAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if err := l.sem.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer l.sem.release()
	return l.inner.ChatWithUsage(ctx, model, messages)
}

// CountTokens is local for most providers and is not limited.
func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return l.inner.CountTokens(ctx, model, messages)
}

type limitedImages struct {
	inner adapter.ImageGenerator
	sem   semaphore
}

func NewLimitedImages(inner adapter.ImageGenerator, maxConcurrent int) adapter.ImageGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedImages{inner: inner, sem: make(semaphore, maxConcurrent)}
}

func (l *limitedImages) GenerateImage(ctx context.Context, req adapter.ImageRequest) (adapter.GeneratedImage, error) {
	if err := l.sem.acquire(ctx); err != nil {
		return adapter.GeneratedImage{}, err
	}
	defer l.sem.release()
	return l.inner.GenerateImage(ctx, req)
}
