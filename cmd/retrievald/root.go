package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "retrievald",
	Short: "Sharded image indexing gateway",
	Long: `retrievald fronts a set of index shards with a single HTTP API.

Images are ingested into named shards (or round-robin across the
existing ones), annotated with key/value properties, and looked up
either per shard or across all shards at once.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug|info|warn|error")
}

// envOr returns the environment variable value, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
