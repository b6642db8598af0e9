package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"previsioni/internal/cache"
	"previsioni/internal/cli"
	apphttp "previsioni/internal/http"
	"previsioni/internal/log"
	"previsioni/internal/services"
)

func main() {
	cfg, logger := cli.MustSetup(log.ComponentApp)

	ctx := context.Background()
	backends, err := cli.InitBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer backends.Close()

	// Report summaries are published by the worker, not per request.
	service, err := services.NewForecastService(backends.Source, cfg.EngineOptions(),
		services.CacheConfig{Size: cfg.CacheSize, TTL: cfg.CacheTTL}, nil, logger)
	if err != nil {
		logger.Error("Failed to initialize forecast service", log.FieldError, err)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	if c := service.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, service, logger, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
	})

	logger.Info("Starting previsioni server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
