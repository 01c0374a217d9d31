package main

import (
	"context"
	"errors"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/cache"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	applog "cashbook/internal/log"
	"cashbook/internal/sheets"
	gsheet "cashbook/internal/sheets/google"
	memsheet "cashbook/internal/sheets/memory"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting notify-worker", applog.FieldOperation, applog.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "notify-worker needs a broker", errors.New("AMQP_URL is not set"))
	}

	exporter, err := newExporter(context.Background(), logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize exporter", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to connect to AMQP", err)
	}

	notifier := worker.NewNotifyWorker(exporter)
	caches := cache.NewManager()
	caches.Register("notify_seen", notifier.Seen())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		caches.Stop()
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", applog.FieldError, err)
		}
	})
	ctx = applog.NewContext(ctx, logger)
	caches.Start(ctx, 10*time.Minute)

	logger.Info("Consuming cashbook events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	if err := client.Consume(ctx, notifier); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Consumer stopped", err)
	}

	cli.WaitForShutdown(ctx, done)
}

// newExporter writes to Google Sheets when a spreadsheet is configured and
// keeps rows in memory otherwise.
func newExporter(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.Exporter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exported rows are kept in memory only")
		return memsheet.New(), nil
	}
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Exporting to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
