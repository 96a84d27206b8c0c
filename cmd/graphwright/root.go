package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	dryRun       bool
	traceEnabled bool
)

var rootCmd = &cobra.Command{
	Use:   "graphwright",
	Short: "Graphwright - natural-language goals to safe property-graph mutations",
	Long: `Graphwright turns natural-language goals into idempotent property-graph
mutations. Goals are parsed into intents, entity mentions are resolved
against the graph, and a planner executes tools step by step with bounded
retries, diagnosis, and human escalation.

Sessions checkpoint after every transition; a suspended or interrupted
session resumes exactly where it stopped with 'graphwright resume'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "use an in-memory graph instead of the configured backend")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "record spans for sessions and transitions")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(versionCmd)
}
