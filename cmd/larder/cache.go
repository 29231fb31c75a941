package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/content"
)

var cacheFlags struct {
	format    string
	olderThan time.Duration
	yes       bool
	tag       string
	paths     []string
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the data cache",
	Long: `Inspect and maintain the client data cache configured under cache:.

The commands open the configured backend directly. A bbolt file is locked
by a running server; stop it first or use the revalidation route instead.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached entries",
	RunE:  cacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries past their stale window",
	Long: `Remove entries that expired more than --older-than ago. The default
is cache.stale_for, the same cutoff the scheduled sweeper uses.

Examples:
  larder cache prune
  larder cache prune --older-than 1h`,
	RunE: cachePrune,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every cached entry",
	RunE:  cachePurge,
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove entries carrying a tag",
	Long: `Remove every entry stored under --tag, as POST /api/revalidate does
for a running server.

Examples:
  larder cache invalidate --tag wp`,
	RunE: cacheInvalidate,
}

var cacheWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Prime the cache from a running server",
	Long: `Fetch the recipe, article and FAQ listings, plus any --path, through a
running server's proxy endpoint and store the responses in the data
cache. Fallback responses are reported and not stored.

Examples:
  larder cache warm
  larder cache warm --path "/wp/v2/pages?slug=about"`,
	RunE: cacheWarm,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cachePruneCmd, cachePurgeCmd, cacheInvalidateCmd, cacheWarmCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheFlags.format, "format", "text", "output format: text, json, csv")
	cachePruneCmd.Flags().DurationVar(&cacheFlags.olderThan, "older-than", 0, "expiry cutoff (default cache.stale_for)")
	cachePurgeCmd.Flags().BoolVarP(&cacheFlags.yes, "yes", "y", false, "confirm removing every entry")
	cacheInvalidateCmd.Flags().StringVar(&cacheFlags.tag, "tag", config.DefaultRevalidateTag, "tag to invalidate")
	cacheWarmCmd.Flags().StringArrayVar(&cacheFlags.paths, "path", nil, "additional API path to fetch (repeatable)")
}

// cacheReport is the outcome of a cache command.
type cacheReport struct {
	Backend string `json:"backend"`
	Action  string `json:"action"`
	Removed int    `json:"removed,omitempty"`
	Entries int    `json:"entries"`
}

func (r cacheReport) Header() []string { return []string{"backend", "action", "removed", "entries"} }

func (r cacheReport) Rows() [][]string {
	return [][]string{{r.Backend, r.Action, strconv.Itoa(r.Removed), strconv.Itoa(r.Entries)}}
}

// withStore opens the configured data cache, runs fn, and prints the report.
func withStore(cmd *cobra.Command, action string, fn func(ctx context.Context, cfg *config.Config, store cache.Store) (int, error)) error {
	format, err := cli.ParseFormat(cacheFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return cli.NewCommandError("cache "+action, err)
	}
	defer store.Close()

	ctx := cmd.Context()
	removed, err := fn(ctx, cfg, store)
	if err != nil {
		return cli.NewCommandError("cache "+action, err)
	}

	entries, err := store.Len(ctx)
	if err != nil {
		return cli.NewCommandError("cache "+action, err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cacheReport{
		Backend: cfg.Cache.Backend,
		Action:  action,
		Removed: removed,
		Entries: entries,
	})
}

func cacheStats(cmd *cobra.Command, args []string) error {
	return withStore(cmd, "stats", func(context.Context, *config.Config, cache.Store) (int, error) {
		return 0, nil
	})
}

func cachePrune(cmd *cobra.Command, args []string) error {
	return withStore(cmd, "prune", func(ctx context.Context, cfg *config.Config, store cache.Store) (int, error) {
		staleFor := cfg.Cache.StaleFor
		if cacheFlags.olderThan > 0 {
			staleFor = cacheFlags.olderThan
		}
		return cache.NewSweeper(store, client.CacheName, "", staleFor, nil).Sweep(ctx)
	})
}

func cachePurge(cmd *cobra.Command, args []string) error {
	if !cacheFlags.yes {
		return fmt.Errorf("refusing to purge without --yes")
	}
	return withStore(cmd, "purge", func(ctx context.Context, _ *config.Config, store cache.Store) (int, error) {
		return store.Purge(ctx)
	})
}

func cacheInvalidate(cmd *cobra.Command, args []string) error {
	if cacheFlags.tag == "" {
		return fmt.Errorf("--tag must not be empty")
	}
	return withStore(cmd, "invalidate", func(ctx context.Context, _ *config.Config, store cache.Store) (int, error) {
		return store.InvalidateTag(ctx, cacheFlags.tag)
	})
}

// warmResult is one row of the warm report.
type warmResult struct {
	Path     string `json:"path"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

type warmReport []warmResult

func (r warmReport) Header() []string { return []string{"path", "outcome"} }

func (r warmReport) Rows() [][]string {
	rows := make([][]string, len(r))
	for i, res := range r {
		outcome := "cached"
		switch {
		case res.Error != "":
			outcome = "error: " + res.Error
		case res.Fallback:
			outcome = "fallback"
		}
		rows[i] = []string{res.Path, outcome}
	}
	return rows
}

// warmPaths are the catalogue listings the content service requests.
func warmPaths(extra []string) []string {
	paths := []string{
		content.ListPath(content.RecipesPath, 0, 0),
		content.ListPath(content.ArticlesPath, 0, 0),
		content.ListPath(content.FAQsPath, 0, 0),
	}
	return append(paths, extra...)
}

func cacheWarm(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(cacheFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := cache.Open(cfg.Cache)
	if err != nil {
		return cli.NewCommandError("cache warm", err)
	}
	defer store.Close()

	c, err := client.New(proxyClientConfig(cfg), client.WithStore(store), client.WithLogger(logger.Logger))
	if err != nil {
		return cli.NewConfigError("client", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	paths := warmPaths(cacheFlags.paths)
	report := make(warmReport, 0, len(paths))

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "Warming")
	progress.Start(int64(len(paths)))
	for _, path := range paths {
		if ctx.Err() != nil {
			progress.Error(ctx.Err())
			return cli.NewCommandError("cache warm", ctx.Err())
		}

		res := warmResult{Path: path}
		r, err := client.Fetch[json.RawMessage](ctx, c, path, nil)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Fallback = r.Fallback
		}
		report = append(report, res)
		progress.Increment()
	}
	progress.Finish()

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)
}
