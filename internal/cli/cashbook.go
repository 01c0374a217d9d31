package cli

import (
	"context"
	"fmt"

	"cashbook/internal/backend"
	"cashbook/internal/config"
	"cashbook/internal/core"
	"cashbook/internal/fx"
	applog "cashbook/internal/log"
	"cashbook/internal/services"
)

// OpenCashbook opens the configured store and event publisher and wires the
// service facade on top of them. The returned cleanup closes both.
func OpenCashbook(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*services.Cashbook, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	source, err := fx.ParseSource(cfg.RateSource)
	if err != nil {
		return nil, nil, err
	}
	base, err := core.ParseCurrency(cfg.BaseCurrency)
	if err != nil {
		return nil, nil, fmt.Errorf("base currency: %w", err)
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}

	app := services.NewCashbook(res.Store, services.Options{
		Events:      res.Publisher,
		RateSource:  source,
		Base:        base,
		RateTTL:     cfg.RateCacheTTL,
		PageSize:    cfg.PageSize,
		Concurrency: cfg.RecurringConcurrency,
	})
	logger.InfoContext(ctx, "Cashbook ready",
		"backend", bcfg.Type.String(),
		"rate_source", string(source),
		"base_currency", string(base),
		"events", cfg.AMQPURL != "")
	return app, res.Cleanup, nil
}
