package main

import (
	"context"
	"errors"
	"os"
	"time"

	"previsioni/internal/cli"
	"previsioni/internal/log"
	"previsioni/internal/services"
	"previsioni/internal/sheets"
	gsheet "previsioni/internal/sheets/google"
	"previsioni/internal/worker"
)

func main() {
	cfg, logger := cli.MustSetup(log.ComponentWorker)
	logger.Info("Starting previsioni-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	backends, err := cli.InitBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer backends.Close()

	amqpClient, err := cli.InitAMQP(ctx, cfg, logger, 0)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Caching is pointless here: every run follows a change.
	service, err := services.NewForecastService(backends.Source, cfg.EngineOptions(),
		services.CacheConfig{}, amqpClient, logger)
	if err != nil {
		logger.Error("Failed to initialize forecast service", log.FieldError, err)
		os.Exit(1)
	}

	var mirror *worker.Mirror
	if cfg.MirrorSheets {
		sheetsClient, err := gsheet.New(ctx, gsheet.Settings{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			YearsBack:          cfg.GoogleYearsBack,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		replacer, ok := backends.Writer.(sheets.RecordReplacer)
		if !ok {
			logger.Error("MIRROR_SHEETS needs a backend that can replace its records")
			os.Exit(1)
		}
		mirror = &worker.Mirror{Source: sheetsClient, Writer: replacer}
		logger.Info("Mirroring Google Sheets into local storage", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	recompute, err := worker.NewRecomputeWorker(service, mirror, logger)
	if err != nil {
		logger.Error("Failed to initialize worker", log.FieldError, err)
		os.Exit(1)
	}

	if err := recompute.StartupRecompute(ctx); err != nil {
		// Keep consuming: the next message or tick retries.
		logger.Error("Startup recompute failed", log.FieldError, err)
	}

	go recompute.RunPeriodic(ctx, cfg.RecomputeInterval)

	if err := amqpClient.RunConsumer(ctx, recompute.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
