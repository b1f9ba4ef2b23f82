package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"manageease/internal/storage/sqlite"
)

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			store, err := sqlite.Open(opts.dbPath, logger)
			if err != nil {
				return err
			}
			logger.Info("schema is up to date", slog.String("db", opts.dbPath))
			return store.Close()
		},
	}
}
