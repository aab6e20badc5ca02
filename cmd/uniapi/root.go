package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "uniapi",
	Short: "uniapi - a multi-provider LLM gateway",
	Long: `uniapi is a single-endpoint LLM gateway that fronts any number of
configured upstream providers, picking a caller-requested model's eligible
provider by priority with automatic failover and cooldown on failure.

It exposes one proxy surface for caller requests, an admin surface for
configuration and observability, and standard operational endpoints:
  - Caller-facing proxy with model-aware, priority-ordered failover
  - Hot-reloadable configuration document (no restart to add a provider)
  - Admin CRUD over configuration and provider runtime state
  - Request log with an optional durable sqlite mirror
  - Prometheus metrics, health/readiness checks, and OpenTelemetry tracing`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Disable default completion command (we'll add our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
