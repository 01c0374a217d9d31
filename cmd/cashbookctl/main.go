package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cashbook/internal/cli"
	"cashbook/internal/config"
	applog "cashbook/internal/log"
	"cashbook/internal/services"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	ownerID  string
	logLevel string

	appConfig *config.Config
	logger    *applog.Logger

	rootCmd = &cobra.Command{
		Use:   "cashbookctl",
		Short: "Inspect and maintain a cashbook from the command line",
		Long: `cashbookctl works on the same store as the cashbook server, configured by
the same environment variables (DATA_BACKEND, SQLITE_DB_PATH, RATE_SOURCE ...).

Use it to print aggregates and budget status, apply recurring rules by hand
and manage exchange rates.`,
		SilenceUsage:      true,
		PersistentPreRunE: initApp,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", os.Getenv("CASHBOOK_OWNER"), "owner id (default $CASHBOOK_OWNER)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(budgetsCmd())
	rootCmd.AddCommand(recurringCmd())
	rootCmd.AddCommand(ratesCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sheetsAuthCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	level, err := applog.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	cfg := applog.DefaultConfig()
	cfg.Level = level
	cfg.Output = os.Stderr
	logger = applog.New(cfg)
	applog.SetDefault(logger)
	cmd.SetContext(applog.NewContext(cmd.Context(), logger))

	appConfig = config.Load()
	return appConfig.Validate()
}

// openCashbook opens the configured store. Callers must run the returned
// cleanup.
func openCashbook(cmd *cobra.Command) (*services.Cashbook, func(), error) {
	app, cleanup, err := cli.OpenCashbook(cmd.Context(), logger, appConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cashbook: %w", err)
	}
	return app, func() {
		if err := cleanup(); err != nil {
			logger.Error("failed to close backend", applog.FieldError, err)
		}
	}, nil
}

func requireOwner() (string, error) {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		return "", errors.New("--owner is required")
	}
	return owner, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cashbookctl", version)
		},
	}
}
