// Command flagctl is the operator CLI for the evaluation engine: hashing
// diagnostics, schema migration, demo data and experiment lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jordanlanch/feedbackhub/config"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalOptions are shared by every command that touches storage
type globalOptions struct {
	databaseURL string
	redisURL    string
	logLevel    string
}

func buildRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "flagctl",
		Short: "Operate feature flags and experiments",
		Long: `flagctl inspects and operates the evaluation engine.

Hashing diagnostics (bucket, assign) run offline. cache flush talks to the
Redis given by --redis-url. The remaining commands connect to the database
given by --database-url or DATABASE_URL.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL")
	rootCmd.PersistentFlags().StringVar(&opts.redisURL, "redis-url", "", "Redis URL of the definition cache (optional except for cache flush)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildBucketCmd(),
		buildAssignCmd(),
		buildMigrateCmd(opts),
		buildSeedCmd(opts),
		buildExperimentCmd(opts),
		buildCacheCmd(opts),
	)
	return rootCmd
}
