package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cashbook/internal/cli"
	apphttp "cashbook/internal/http"
	applog "cashbook/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	app, cleanup, err := cli.OpenCashbook(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize cashbook", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, app, apphttp.Options{
		Logger:       logger,
		RateLimitRPM: cfg.RateLimitRPM,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := cleanup(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	})

	logger.Info("Starting cashbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
