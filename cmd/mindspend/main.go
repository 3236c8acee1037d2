package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mindspend/internal/amqp"
	"mindspend/internal/backend"
	"mindspend/internal/cache"
	"mindspend/internal/cli"
	"mindspend/internal/coaching"
	"mindspend/internal/core"
	apphttp "mindspend/internal/http"
	"mindspend/internal/llm/openai"
	"mindspend/internal/log"
	"mindspend/internal/middleware/ratelimit"
	"mindspend/internal/services"
	"mindspend/internal/summary"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	store := result.Store

	opts := coaching.Options{Model: cfg.OpenAIModel}
	syncer := summary.NewSyncer(store, store, opts)

	insightCache := cache.NewLRUCache[core.StressSpendInsight](cfg.InsightCacheSize, cfg.InsightCacheTTL)
	caches := cache.NewManager()
	caches.Register(insightCache)
	caches.StartCleanup(time.Minute)
	insights := services.NewInsightService(store, insightCache)

	var (
		publisher  services.RefreshPublisher
		amqpClient *amqp.Client
	)
	if cfg.QueueRefresh() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("Summary refreshes queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Summary refreshes run inline")
	}
	events := services.NewEventService(store, syncer, publisher, insights)

	var (
		coach        apphttp.Coach
		coachLimiter *ratelimit.Limiter
	)
	if cfg.CoachingEnabled() {
		completer, err := openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Timeout:    cfg.OpenAITimeout,
			MaxRetries: cfg.OpenAIMaxRetries,
		})
		if err != nil {
			logger.Error("Failed to initialize OpenAI client", log.FieldError, err)
			os.Exit(1)
		}
		coachLimiter = ratelimit.NewLimiter(ratelimit.PerMinute(cfg.CoachingRatePerMinute))
		coach = coaching.NewCoach(syncer, insights, store, completer, coachLimiter, opts)
		logger.Info("Coaching enabled", log.FieldModel, completer.Model())
	} else {
		logger.Info("Coaching disabled - no OPENAI_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Events:    events,
		Insights:  insights,
		Summaries: syncer,
		Records:   store,
		Coach:     coach,
		Ready:     store,
		Logger:    logger,
		Limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		Coaching:  opts,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if coachLimiter != nil {
			coachLimiter.Stop()
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := result.Cleanup(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting mindspend server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
