package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pawpantry/larder/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "larder",
	Short: "Larder - resilient WordPress content proxy",
	Long: `Larder sits between a site and its WordPress JSON API.

The /api/wp endpoint retries rate limits and gateway errors with backoff
and answers with a stable fallback envelope when the upstream stays
unavailable, so pages render an empty state instead of an error. The
catalogue routes build recipes, articles and FAQs on top of it with a
data cache that serves stale entries while the upstream is down.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "larder.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
