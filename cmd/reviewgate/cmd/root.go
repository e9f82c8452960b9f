// Package cmd provides the CLI commands for reviewgate.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewgate/reviewgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "reviewgate",
	Short: "reviewgate - review workflow enforcement for submit and shelve triggers",
	Long: `reviewgate resolves the workflow rules that apply to a pending change and
gates whether the change may be submitted or shelved.

Projects and their branches may each carry a workflow; reviewgate merges
every workflow a change touches (strictest rule wins), overlays the global
workflow, and drives the submit/shelve decision: require an approved review,
auto-create or link a review, or reject the change outright.

Quick start:
  1. Create a config file: reviewgate.yaml
  2. Seed records:         reviewgate seed fixtures.yaml
  3. Gate a submit:        reviewgate check enforced --change 1234 --user alice

Configuration:
  Config is loaded from reviewgate.yaml in the current directory,
  $HOME/.reviewgate/, or /etc/reviewgate/.

  Environment variables can override config values with the REVIEWGATE_
  prefix. Example: REVIEWGATE_STORAGE_PATH=/var/lib/reviewgate.db

Commands:
  check       Run an enforcement gate against a change
  resolve     Print the merged workflow for a set of project branches
  seed        Load workflows, projects, and reviews from a fixture file
  serve       Start the metrics/health listener
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./reviewgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// newLogger builds the process logger from the configured level.
// Logs go to stderr; stdout is reserved for command output.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
