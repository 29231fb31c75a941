package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the larder server",
	Long: `Start the larder server with the specified configuration.

The server answers /api/wp with the upstream body or the fallback
envelope, serves the recipe, article and FAQ catalogue from the data
cache, and exposes /health, /ready, /version and /metrics.

Changes to the log level in the config file are applied without a
restart; every other setting is read once at startup.

Examples:
  # Start with default config
  larder run

  # Start with custom config
  larder run --config /etc/larder/larder.yaml

  # Override listen address
  larder run --listen 0.0.0.0:8080

  # Validate config without starting server
  larder run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the log level when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			slog.Error("failed to release resources", "error", err)
		}
	}()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	sweeper := cache.NewSweeper(a.data, client.CacheName, cfg.Cache.PruneSchedule, cfg.Cache.StaleFor, a.metrics)
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewConfigError("cache.prune_schedule", err.Error())
	}
	defer sweeper.Stop()

	srv := server.NewServer(cfg, server.Dependencies{
		Fetcher:      a.fetcher,
		Content:      a.content,
		Invalidators: a.invalidators(),
		Health:       a.health,
		Metrics:      a.metrics,
		Tracer:       a.tracer,
		Version:      versionInfo(),
	})

	printBanner(cmd, cfg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if !runFlags.noWatch {
		if _, err := os.Stat(cfgFile); err == nil {
			watcher, err := config.NewWatcher(cfgFile, 0, logger.Logger)
			if err != nil {
				return fmt.Errorf("failed to watch config: %w", err)
			}
			g.Go(func() error {
				return watcher.Watch(ctx, func(next *config.Config) {
					// Command-line levels win over the file.
					if runFlags.logLevel != "" || verbose {
						return
					}
					level := next.Telemetry.Logging.Level
					if err := logger.SetLevel(level); err != nil {
						slog.Warn("ignoring invalid log level", "level", level, "error", err)
						return
					}
					slog.Info("log level updated", "level", level)
				})
			})
		} else if !errors.Is(err, fs.ErrNotExist) {
			return cli.NewConfigError("", err.Error())
		}
	}

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
	return nil
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	addr := cfg.Server.ListenAddress

	fmt.Fprintf(out, "Larder v%s\n", Version)
	fmt.Fprintf(out, "✓ Upstream: %s%s\n", cfg.Upstream.BaseURL, cfg.Upstream.APIPrefix)
	fmt.Fprintf(out, "✓ Data cache: %s\n", cfg.Cache.Backend)
	if cfg.Upstream.TransportCache.Enabled {
		fmt.Fprintf(out, "✓ Transport cache: %s TTL\n", cfg.Upstream.TransportCache.TTL)
	}
	if cfg.Revalidate.Secret == "" {
		fmt.Fprintln(out, "  Revalidation disabled (no secret configured)")
	}
	fmt.Fprintf(out, "✓ Proxy endpoint: http://%s%s?path=...\n", addr, cfg.Client.ProxyPath)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s/health\n", addr)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
