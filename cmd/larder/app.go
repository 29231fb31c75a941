package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/proxy/handlers"
	"pawpantry/larder/pkg/telemetry/health"
	"pawpantry/larder/pkg/telemetry/logging"
	"pawpantry/larder/pkg/telemetry/metrics"
	"pawpantry/larder/pkg/telemetry/tracing"
	"pawpantry/larder/pkg/upstream"
)

// transportCacheName labels the upstream transport cache in metrics and
// revalidation responses.
const transportCacheName = "transport"

// healthCheckTimeout bounds each readiness check.
const healthCheckTimeout = 2 * time.Second

// app holds the components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer

	fetcher   *upstream.Fetcher
	transport cache.Store
	data      cache.Store
	client    *client.Client
	content   *content.Service
	health    *health.Checker

	closers []func(context.Context) error
}

// loadConfig reads the --config file with .env and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:      level,
		Format:     cfg.Telemetry.Logging.Format,
		AddSource:  cfg.Telemetry.Logging.AddSource,
		RedactKeys: cfg.Telemetry.Logging.RedactKeys,
		Writer:     os.Stderr,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)
	return logger, nil
}

// newApp wires the fetcher, caches, client and catalogue from cfg.
// Callers must call close.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		health:  health.New(healthCheckTimeout),
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer
	a.closers = append(a.closers, tracer.Shutdown)

	opts := []upstream.Option{
		upstream.WithRecorder(a.metrics),
		upstream.WithTracer(tracer),
		upstream.WithLogger(logger.Logger),
	}
	if tc := cfg.Upstream.TransportCache; tc.Enabled {
		store := cache.NewMemoryStore(tc.MaxEntries)
		a.observeEvictions(store, transportCacheName)
		a.transport = store
		opts = append(opts, upstream.WithTransport(&cache.Transport{
			Base:     upstream.NewTransport(cfg.Upstream),
			Store:    store,
			TTL:      tc.TTL,
			Tags:     cfg.Client.Tags,
			Name:     transportCacheName,
			Recorder: a.metrics,
		}))
	}

	a.fetcher, err = upstream.New(cfg.Upstream, opts...)
	if err != nil {
		a.close()
		return nil, cli.NewConfigError("upstream", err.Error())
	}

	a.data, err = cache.Open(cfg.Cache)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open %s data cache: %w", cfg.Cache.Backend, err)
	}
	a.observeEvictions(a.data, client.CacheName)
	a.closers = append(a.closers, func(context.Context) error { return a.data.Close() })

	clientCfg := cfg.Client
	clientCfg.ProxyURL = cfg.ResolvedProxyURL()
	a.client, err = client.New(clientCfg,
		client.WithStore(a.data),
		client.WithRecorder(a.metrics),
		client.WithTracer(tracer),
		client.WithLogger(logger.Logger),
	)
	if err != nil {
		a.close()
		return nil, cli.NewConfigError("client", err.Error())
	}
	a.content = content.NewService(a.client, 0)

	a.health.RegisterCheck("upstream", a.fetcher.Health().Check)
	a.health.RegisterCheck("cache", func(ctx context.Context) error {
		_, err := a.data.Len(ctx)
		return err
	})

	return a, nil
}

// observeEvictions reports capacity evictions of memory stores.
func (a *app) observeEvictions(store cache.Store, name string) {
	if ms, ok := store.(*cache.MemoryStore); ok {
		ms.OnEvict(func(n int) { a.metrics.RecordCacheEviction(name, n) })
	}
}

// invalidators returns the caches cleared by /api/revalidate.
func (a *app) invalidators() map[string]handlers.Invalidator {
	targets := map[string]handlers.Invalidator{client.CacheName: a.client}
	if a.transport != nil {
		targets[transportCacheName] = a.transport
	}
	return targets
}

// close releases components in reverse order of creation.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
