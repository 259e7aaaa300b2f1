package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"editorial-pipeline/internal/config"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/adapter"
	aiAdapters "editorial-pipeline/internal/infra/adapters/ai"
	"editorial-pipeline/internal/infra/adapters/notify"
	tele "editorial-pipeline/internal/infra/adapters/telegram"
	"editorial-pipeline/internal/infra/adapters/web"
	"editorial-pipeline/internal/infra/api"
	"editorial-pipeline/internal/infra/api/apiv1"
	pg "editorial-pipeline/internal/infra/db/postgres"
	"editorial-pipeline/internal/infra/logging"
	"editorial-pipeline/internal/infra/metrics"
	red "editorial-pipeline/internal/infra/redis"
	"editorial-pipeline/internal/infra/sched"
	"editorial-pipeline/internal/infra/worker"
	"editorial-pipeline/internal/usecase"
	"editorial-pipeline/internal/usecase/stages"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop AI without keys, open API)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.MustRegister()
	metrics.SetBuildInfo("editorial-app", version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	articleRepo := pg.NewArticleRepo(pool)
	scheduleRepo := pg.NewScheduleRepo(pool)
	refs := pg.NewReferenceRepoCacheDecorator(pg.NewReferenceRepo(pool), redisClient, 0, logger)

	queue := red.NewSignalQueue(redisClient, cfg.Pipeline.ConsumerID)
	locker := red.NewLocker(redisClient)

	// ---- Use cases ----
	admission := usecase.NewAdmissionLimiter(red.NewRateLimiter(redisClient), map[model.LimiterClass]model.LimitPolicy{
		model.LimiterJobSubmission:   {Ceiling: cfg.Limits.JobSubmission.Ceiling, Window: cfg.Limits.JobSubmission.Window},
		model.LimiterImageGeneration: {Ceiling: cfg.Limits.ImageGeneration.Ceiling, Window: cfg.Limits.ImageGeneration.Window},
	}, logger)
	articleUC := usecase.NewArticleUseCase(articleRepo, scheduleRepo, tm, logger)
	scheduleUC := usecase.NewScheduleUseCase(articleUC, scheduleRepo, tm, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, refs, tm, queue, admission, usecase.NewStyleSelector(jobRepo), articleUC, logger)

	// ---- AI + stages ----
	text, images, err := buildAI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	executors := stages.New(stages.Deps{
		AI:        text,
		Images:    images,
		Web:       web.NewFetcher(nil, cfg.Enrichment.Timeout, cfg.Enrichment.UserAgent),
		Tokenizer: aiAdapters.NewTokenizer(cfg.AI.TextModel),
		Limiter:   admission,
		Articles:  articleUC,
		Scheduler: scheduleUC,
	}, stages.Options{
		TextModel:           cfg.AI.TextModel,
		ImageSize:           cfg.AI.ImageSize,
		ImageEveryNSections: cfg.Pipeline.ImageEveryNSections,
		MaxImages:           cfg.Pipeline.MaxImages,
		SourceTokenBudget:   cfg.Pipeline.SourceTokenBudget,
		MaxFacts:            cfg.Enrichment.MaxFacts,
	}, logger)

	notifier := notify.Fanout{notify.NewLogNotifier(logger)}
	if cfg.Telegram.Token != "" {
		tg, err := tele.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		notifier = append(notifier, tg)
	}

	pipeline := usecase.NewPipelineUseCase(jobRepo, refs, tm, queue, locker, notifier, executors, usecase.PipelineOptions{
		LockTTL:    cfg.Pipeline.LockTTL,
		TimeoutFor: func(n model.StageName) time.Duration { return cfg.Pipeline.TimeoutFor(string(n)) },
	}, logger)

	// ---- Workers ----
	workerPool := worker.NewPool(cfg.Pipeline.Workers, logger)
	workerPool.Start(ctx)
	consumer := worker.NewSignalConsumer(queue, pipeline, workerPool, worker.ConsumerOptions{ReceiveWait: cfg.Pipeline.ReceiveWait}, logger)
	go func() { _ = consumer.Run(ctx) }()

	publisher := sched.NewPublishWorker(cfg.Scheduler.PollInterval, cfg.Scheduler.BatchSize, scheduleUC, logger)
	go func() { _ = publisher.Run(ctx) }()

	// ---- HTTP ----
	var auth *api.Authenticator
	switch {
	case cfg.HTTP.JWTSecret != "":
		auth = api.NewAuthenticator(cfg.HTTP.JWTSecret)
	case !cfg.Runtime.Dev:
		return errors.New("http.jwt_secret is required outside dev mode")
	default:
		logger.Warn().Msg("http.jwt_secret not set; API is open")
	}
	router := api.NewRouter(apiv1.NewServer(jobUC, articleUC, scheduleUC, logger), api.RouterOptions{
		Auth: auth,
		Health: map[string]api.HealthCheck{
			"postgres": pool.Ping,
			"redis":    redisClient.Ping,
		},
	}, logger)
	server := api.NewServer(cfg.HTTP.Port, router, logger)
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
		cancel()
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	workerPool.Stop()
	logger.Info().Msg("stopped")
	return nil
}

// buildAI wires the text and image providers. Without keys in dev mode both are the noop adapter.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, adapter.ImageGenerator, error) {
	providers := map[string]adapter.AIServiceAdapter{}
	var images adapter.ImageGenerator

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.TextModel, cfg.AI.ImageModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers["openai"] = oa
		images = oa
	}
	if cfg.AI.GeminiKey != "" {
		gm, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "", cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers["gemini"] = gm
	}

	if len(providers) == 0 {
		noop := aiAdapters.NewNoopAIAdapter(logger)
		logger.Warn().Msg("no AI provider configured; using noop adapter")
		return noop, noop, nil
	}
	if images == nil {
		if !cfg.Runtime.Dev {
			return nil, nil, errors.New("image generation requires ai.openai_key")
		}
		images = aiAdapters.NewNoopAIAdapter(logger)
	}
	logger.Info().
		Str("default_provider", cfg.AI.DefaultProvider).
		Str("text_model", cfg.AI.TextModel).
		Str("image_model", cfg.AI.ImageModel).
		Int("providers", len(providers)).
		Msg("ai adapters ready")

	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.DefaultProvider, providers, cfg.AI.ModelProviders)
	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit), aiAdapters.NewLimitedImages(images, cfg.AI.ConcurrentLimit), nil
}
