package main

import (
	"errors"
	"fmt"

	"cashbook/internal/storage"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and apply SQLite schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			v, dirty, err := storage.MigrationVersion(path)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: version %d (%s)\n", path, v, state)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date.\n", path)
			return nil
		},
	})
	return cmd
}

func sqlitePath() (string, error) {
	if appConfig.DataBackend != "sqlite" {
		return "", errors.New("migrations need DATA_BACKEND=sqlite")
	}
	return appConfig.SQLiteDBPath, nil
}
