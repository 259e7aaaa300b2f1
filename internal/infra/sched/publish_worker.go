package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/usecase"
)

// minWait keeps the loop from spinning on intents another worker holds.
const minWait = 200 * time.Millisecond

// PublishWorker fires scheduled publishes. It sleeps until the earliest pending
// intent, never longer than the poll interval, and wakes early when one is armed.
type PublishWorker struct {
	schedules usecase.ScheduleUseCase
	poll      time.Duration
	batch     int
	now       func() time.Time
	log       *zerolog.Logger
}

func NewPublishWorker(poll time.Duration, batch int, schedules usecase.ScheduleUseCase, logger *zerolog.Logger) *PublishWorker {
	compLog := logger.With().Str("component", "PublishWorker").Logger()
	if poll <= 0 {
		poll = 30 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &PublishWorker{
		schedules: schedules,
		poll:      poll,
		batch:     batch,
		now:       time.Now,
		log:       &compLog,
	}
}

func (w *PublishWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("poll", w.poll).Msg("Starting publish worker")
	for {
		w.fire(ctx)

		t := time.NewTimer(w.nextWait(ctx))
		select {
		case <-ctx.Done():
			t.Stop()
			w.log.Info().Msg("Stopping publish worker")
			return ctx.Err()
		case <-w.schedules.Wake():
			t.Stop()
		case <-t.C:
		}
	}
}

func (w *PublishWorker) fire(ctx context.Context) {
	n, err := w.schedules.FireDue(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("firing due publishes failed")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("scheduled publishes fired")
	}
}

func (w *PublishWorker) nextWait(ctx context.Context) time.Duration {
	at, err := w.schedules.NextFireAt(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
			w.log.Warn().Err(err).Msg("next fire time lookup failed")
		}
		return w.poll
	}
	d := at.Sub(w.now())
	switch {
	case d < minWait:
		return minWait
	case d > w.poll:
		return w.poll
	}
	return d
}
