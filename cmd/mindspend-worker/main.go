package main

import (
	"context"
	"errors"
	"os"
	"time"

	"mindspend/internal/amqp"
	"mindspend/internal/backend"
	"mindspend/internal/cache"
	"mindspend/internal/cli"
	"mindspend/internal/coaching"
	"mindspend/internal/log"
	"mindspend/internal/sheets"
	gsheet "mindspend/internal/sheets/google"
	"mindspend/internal/summary"
	"mindspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting mindspend-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	store := result.Store
	syncer := summary.NewSyncer(store, store, coaching.Options{Model: cfg.OpenAIModel})

	caches := cache.NewManager()
	var exporter sheets.SummaryExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSummarySheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		caches.Register(client.RowIndex())
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}
	caches.StartCleanup(5 * time.Minute)

	refreshWorker := worker.NewRefreshWorker(syncer, store, exporter, cfg.ResyncDays)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
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

	if cfg.ResyncOnStartup {
		logger.Info("Performing startup resync")
		if failed, err := refreshWorker.ResyncRecent(ctx); err != nil {
			logger.Error("Startup resync failed", log.FieldError, err, "failed_owners", failed)
		}
	}

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeSummaryRefresh(ctx, refreshWorker.HandleRefreshMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - no AMQP_URL provided")
	}

	go refreshWorker.RunPeriodicResync(ctx, cfg.ResyncInterval)

	<-done
	logger.Info("Worker stopped gracefully")
}
