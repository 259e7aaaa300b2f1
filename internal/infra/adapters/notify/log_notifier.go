package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
)

var (
	_ adapter.JobNotifier = (*LogNotifier)(nil)
	_ adapter.JobNotifier = Fanout(nil)
)

// LogNotifier writes terminal job events to the service log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) JobFinished(ctx context.Context, job *model.GenerationJob) error {
	u := job.TotalUsage()
	ev := n.log.Info()
	if job.Status == model.JobStatusFailed {
		ev = n.log.Warn().Str("last_error", job.LastError)
	}
	if job.ArticleID != nil {
		ev = ev.Str("article_id", *job.ArticleID)
	}
	ev.Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Str("submitted_by", job.SubmittedBy).
		Int("tokens_in", u.TokensIn).
		Int("tokens_out", u.TokensOut).
		Int("images", u.Images).
		Msg("job finished")
	return nil
}

// Fanout delivers each event to every notifier and joins their errors.
type Fanout []adapter.JobNotifier

func (f Fanout) JobFinished(ctx context.Context, job *model.GenerationJob) error {
	var errs []error
	for _, n := range f {
		if err := n.JobFinished(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
