package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"manageease/internal/util"
)

var version = "dev"

// options are shared by every subcommand.
type options struct {
	dbPath   string
	logLevel string
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "manageease",
		Short:         "ManageEase task manager backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", util.EnvOrDefault("MANAGEEASE_DB_PATH", "data/manageease.db"), "Path to sqlite database file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", util.EnvOrDefault("MANAGEEASE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(seedCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
