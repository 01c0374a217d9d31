package main

import (
	"context"
	"time"

	"cashbook/internal/cli"
	applog "cashbook/internal/log"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting recurring-worker", applog.FieldOperation, applog.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger)

	app, cleanup, err := cli.OpenCashbook(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize cashbook", err)
	}

	runner := worker.NewRecurringRunner(app, cfg.RecurringInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := runner.Stop(ctx); err != nil {
			logger.Error("Failed to stop recurring runner", applog.FieldError, err)
		}
		if err := cleanup(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	})

	ctx = applog.NewContext(ctx, logger)
	if err := runner.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start recurring runner", err)
	}
	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"concurrency", cfg.RecurringConcurrency)

	cli.WaitForShutdown(ctx, done)
}
