package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	"editorial-pipeline/internal/domain/ports/repository"
	portuc "editorial-pipeline/internal/domain/ports/usecase"
	"editorial-pipeline/internal/infra/logging"
	"editorial-pipeline/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// StageExecutors is the closed set of executors, one per fixed stage.
type StageExecutors struct {
	SelectVoiceSource portuc.StageExecutor
	ThemeAnalysis     portuc.StageExecutor
	KeywordSelection  portuc.StageExecutor
	WebEnrichment     portuc.StageExecutor
	Drafting          portuc.StageExecutor
	ImageGeneration   portuc.StageExecutor
	OptimizationPass  portuc.StageExecutor
	Persistence       portuc.StageExecutor
}

func (s StageExecutors) For(name model.StageName) (portuc.StageExecutor, error) {
	var e portuc.StageExecutor
	switch name {
	case model.StageSelectVoiceSource:
		e = s.SelectVoiceSource
	case model.StageThemeAnalysis:
		e = s.ThemeAnalysis
	case model.StageKeywordSelection:
		e = s.KeywordSelection
	case model.StageWebEnrichment:
		e = s.WebEnrichment
	case model.StageDrafting:
		e = s.Drafting
	case model.StageImageGeneration:
		e = s.ImageGeneration
	case model.StageOptimizationPass:
		e = s.OptimizationPass
	case model.StagePersistence:
		e = s.Persistence
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidArgument, name)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: no executor for stage %q", domain.ErrInvalidExecContext, name)
	}
	return e, nil
}

// JobLockKey is the ownership key of one job.
func JobLockKey(jobID string) string { return "job_lock:" + jobID }

type PipelineOptions struct {
	// LockTTL must exceed the longest stage timeout.
	LockTTL    time.Duration
	TimeoutFor func(stage model.StageName) time.Duration
}

// Compile-time check
var _ PipelineUseCase = (*pipelineUC)(nil)

type PipelineUseCase interface {
	// HandleSignal runs at most one stage of the signalled job. A nil error means the signal is consumed.
	HandleSignal(ctx context.Context, sig model.StageSignal) error
}

type pipelineUC struct {
	jobs     repository.GenerationJobRepository
	refs     repository.ReferenceRepository
	tm       repository.TransactionManager
	queue    adapter.SignalQueue
	locker   adapter.Locker
	notifier adapter.JobNotifier
	exec     StageExecutors
	opts     PipelineOptions
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPipelineUseCase(
	jobs repository.GenerationJobRepository,
	refs repository.ReferenceRepository,
	tm repository.TransactionManager,
	queue adapter.SignalQueue,
	locker adapter.Locker,
	notifier adapter.JobNotifier,
	exec StageExecutors,
	opts PipelineOptions,
	logger *zerolog.Logger,
) *pipelineUC {
	l := logger.With().Str("component", "pipeline").Logger()
	if opts.TimeoutFor == nil {
		opts.TimeoutFor = func(model.StageName) time.Duration { return 5 * time.Minute }
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &pipelineUC{
		jobs: jobs, refs: refs, tm: tm, queue: queue, locker: locker, notifier: notifier,
		exec: exec, opts: opts, now: time.Now, log: &l,
	}
}

func (p *pipelineUC) HandleSignal(ctx context.Context, sig model.StageSignal) error {
	ctx = logging.WithJobID(ctx, sig.JobID)
	log := logging.With(ctx, p.log)

	token, err := p.locker.TryLock(ctx, JobLockKey(sig.JobID), p.opts.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrJobBusy) {
			return domain.ErrJobBusy
		}
		return fmt.Errorf("acquire job lock: %w", err)
	}
	defer func() {
		if err := p.locker.Unlock(context.Background(), JobLockKey(sig.JobID), token); err != nil {
			log.Warn().Err(err).Msg("release job lock")
		}
	}()

	job, err := p.jobs.FindByID(ctx, repository.NoTX, sig.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("signal for unknown job dropped")
		return nil
	}
	if err != nil {
		return err
	}

	if job.Status.Terminal() {
		log.Debug().Int("ordinal", sig.Ordinal).Str("status", string(job.Status)).Msg("signal for finished job ignored")
		return nil
	}
	next := job.NextOrdinal()
	if sig.Ordinal != next {
		log.Debug().Int("ordinal", sig.Ordinal).Int("next", next).Msg("stale stage signal ignored")
		if sig.Ordinal == next-1 {
			// the advance after the last success may have been lost; re-signalling is harmless
			return p.queue.Publish(ctx, model.NewStageSignal(job.ID, next))
		}
		return nil
	}

	if job.CancelRequested {
		return p.cancel(ctx, job)
	}
	return p.runStage(ctx, job, next)
}

func (p *pipelineUC) runStage(ctx context.Context, job *model.GenerationJob, ordinal int) error {
	stage, _ := job.Stage(ordinal)
	log := logging.With(ctx, p.log).With().Str("stage", string(stage.Name)).Int("ordinal", ordinal).Logger()

	cfg, cfgErr := loadJobConfig(ctx, p.refs, job)
	if cfgErr != nil && !isValidation(cfgErr) {
		return cfgErr
	}
	executor, execErr := p.exec.For(stage.Name)
	if execErr != nil {
		return execErr
	}

	if err := job.StartStage(ordinal, p.now()); err != nil {
		log.Warn().Err(err).Msg("stage cannot start")
		return nil
	}
	if err := p.persist(ctx, job, stage); err != nil {
		return err
	}

	var stageErr error
	var delta model.ArtifactDelta
	started := time.Now()

	switch {
	case cfgErr != nil:
		stageErr = domain.NewStageError(string(stage.Name), domain.StageErrValidation, cfgErr)
	default:
		acc, err := job.AccumulatedArtifacts()
		if err != nil {
			stageErr = domain.NewStageError(string(stage.Name), domain.StageErrMalformed, err)
			break
		}
		delta, stageErr = p.execute(ctx, executor, stage.Name, model.JobContext{Job: *job, Config: cfg, Artifacts: acc})
	}

	if ctx.Err() != nil {
		// worker shutdown: leave the stage RUNNING so the redelivered signal restarts it
		return ctx.Err()
	}

	elapsed := time.Since(started)
	if stageErr != nil {
		return p.fail(ctx, log, job, ordinal, stageErr, delta.Usage, elapsed)
	}
	return p.succeed(ctx, log, job, ordinal, delta, elapsed)
}

func (p *pipelineUC) execute(ctx context.Context, e portuc.StageExecutor, name model.StageName, jc model.JobContext) (model.ArtifactDelta, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.opts.TimeoutFor(name))
	defer cancel()

	delta, err := e.Execute(stageCtx, jc)
	if err == nil {
		return delta, nil
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return delta, domain.NewStageError(string(name), domain.StageErrTimeout, err)
	}
	if se, ok := domain.AsStage(err); ok {
		return delta, se
	}
	return delta, domain.NewStageError(string(name), domain.StageErrExternal, err)
}

func (p *pipelineUC) succeed(ctx context.Context, log zerolog.Logger, job *model.GenerationJob, ordinal int, delta model.ArtifactDelta, elapsed time.Duration) error {
	stage, _ := job.Stage(ordinal)
	out, err := model.EncodeDelta(delta)
	if err != nil {
		return p.fail(ctx, log, job, ordinal, domain.NewStageError(string(stage.Name), domain.StageErrMalformed, err), delta.Usage, elapsed)
	}
	now := p.now()
	if err := job.SucceedStage(ordinal, out, delta.Usage, now); err != nil {
		return err
	}
	if delta.Persisted != nil {
		id := delta.Persisted.ArticleID
		job.ArticleID = &id
	}

	if job.Status == model.JobStatusRunning {
		cancelled, err := p.jobs.CancelRequested(ctx, repository.NoTX, job.ID)
		if err != nil {
			return err
		}
		if cancelled {
			_ = job.Cancel(now)
		}
	}

	if err := p.persist(ctx, job, stage); err != nil {
		return err
	}
	metrics.ObserveStage(string(stage.Name), "succeeded", elapsed.Seconds(), delta.Usage.TokensIn, delta.Usage.TokensOut, delta.Usage.Images)
	log.Info().Dur("elapsed", elapsed).Int("tokens_in", delta.Usage.TokensIn).Int("tokens_out", delta.Usage.TokensOut).Msg("stage succeeded")

	if job.Status.Terminal() {
		p.finished(ctx, job)
		return nil
	}
	return p.queue.Publish(ctx, model.NewStageSignal(job.ID, ordinal+1))
}

func (p *pipelineUC) fail(ctx context.Context, log zerolog.Logger, job *model.GenerationJob, ordinal int, stageErr error, usage model.StageUsage, elapsed time.Duration) error {
	stage, _ := job.Stage(ordinal)
	if err := job.FailStage(ordinal, stageErr, usage, p.now()); err != nil {
		return err
	}
	if err := p.persist(ctx, job, stage); err != nil {
		return err
	}
	kind := string(domain.StageErrExternal)
	if se, ok := domain.AsStage(stageErr); ok {
		kind = string(se.Kind)
	}
	metrics.ObserveStage(string(stage.Name), "failed", elapsed.Seconds(), usage.TokensIn, usage.TokensOut, usage.Images)
	log.Error().Err(stageErr).Str("kind", kind).Msg("stage failed")
	p.finished(ctx, job)
	return nil
}

func (p *pipelineUC) cancel(ctx context.Context, job *model.GenerationJob) error {
	if err := job.Cancel(p.now()); err != nil {
		return nil
	}
	if err := p.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return err
	}
	p.finished(ctx, job)
	return nil
}

// persist writes the stage row and the job advance atomically.
func (p *pipelineUC) persist(ctx context.Context, job *model.GenerationJob, stage *model.GenerationStage) error {
	return p.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := p.jobs.SaveStage(ctx, tx, stage); err != nil {
			return err
		}
		return p.jobs.Save(ctx, tx, job)
	})
}

func (p *pipelineUC) finished(ctx context.Context, job *model.GenerationJob) {
	metrics.IncJob(string(job.Status))
	logging.With(ctx, p.log).Info().Str("status", string(job.Status)).Str("last_error", job.LastError).Msg("job finished")
	if p.notifier == nil {
		return
	}
	if err := p.notifier.JobFinished(ctx, job); err != nil {
		p.log.Warn().Err(err).Str("job_id", job.ID).Msg("job notification failed")
	}
}

func isValidation(err error) bool {
	_, ok := domain.AsValidation(err)
	return ok
}
