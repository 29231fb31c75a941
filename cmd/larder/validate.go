package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pawpantry/larder/pkg/cli"
	"pawpantry/larder/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file with .env and LARDER_* environment
overrides applied, validate it, and print the effective settings.

Secrets are never printed; only whether they are set.

Examples:
  # Validate the default config file
  larder validate

  # Validate another file and print JSON
  larder validate --config prod.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

// configSummary is the effective configuration as printed by validate.
type configSummary struct {
	ListenAddress     string   `json:"listen_address"`
	UpstreamURL       string   `json:"upstream_url"`
	UpstreamAuth      bool     `json:"upstream_auth"`
	AttemptTimeout    string   `json:"attempt_timeout"`
	RetryDelays       []string `json:"retry_delays"`
	RetryableStatuses []int    `json:"retryable_statuses"`
	TransportCache    bool     `json:"transport_cache"`
	ProxyURL          string   `json:"proxy_url"`
	CacheBackend      string   `json:"cache_backend"`
	Revalidate        string   `json:"revalidate"`
	StaleFor          string   `json:"stale_for"`
	PruneSchedule     string   `json:"prune_schedule"`
	RevalidateRoute   bool     `json:"revalidate_route"`
	Metrics           bool     `json:"metrics"`
	Tracing           bool     `json:"tracing"`
}

func summarize(cfg *config.Config) configSummary {
	delays := make([]string, len(cfg.Upstream.RetryDelays))
	for i, d := range cfg.Upstream.RetryDelays {
		delays[i] = d.String()
	}

	return configSummary{
		ListenAddress:     cfg.Server.ListenAddress,
		UpstreamURL:       cfg.Upstream.BaseURL + cfg.Upstream.APIPrefix,
		UpstreamAuth:      cfg.Upstream.Username != "",
		AttemptTimeout:    cfg.Upstream.AttemptTimeout.String(),
		RetryDelays:       delays,
		RetryableStatuses: cfg.Upstream.RetryableStatuses,
		TransportCache:    cfg.Upstream.TransportCache.Enabled,
		ProxyURL:          cfg.ResolvedProxyURL() + cfg.Client.ProxyPath,
		CacheBackend:      cfg.Cache.Backend,
		Revalidate:        cfg.Client.Revalidate.String(),
		StaleFor:          cfg.Cache.StaleFor.String(),
		PruneSchedule:     cfg.Cache.PruneSchedule,
		RevalidateRoute:   cfg.Revalidate.Secret != "",
		Metrics:           cfg.Telemetry.Metrics.Enabled,
		Tracing:           cfg.Telemetry.Tracing.Enabled,
	}
}

func (s configSummary) Header() []string { return []string{"setting", "value"} }

func (s configSummary) Rows() [][]string {
	statuses := make([]string, len(s.RetryableStatuses))
	for i, code := range s.RetryableStatuses {
		statuses[i] = strconv.Itoa(code)
	}

	return [][]string{
		{"listen_address", s.ListenAddress},
		{"upstream_url", s.UpstreamURL},
		{"upstream_auth", strconv.FormatBool(s.UpstreamAuth)},
		{"attempt_timeout", s.AttemptTimeout},
		{"retry_delays", strings.Join(s.RetryDelays, ",")},
		{"retryable_statuses", strings.Join(statuses, ",")},
		{"transport_cache", strconv.FormatBool(s.TransportCache)},
		{"proxy_url", s.ProxyURL},
		{"cache_backend", s.CacheBackend},
		{"revalidate", s.Revalidate},
		{"stale_for", s.StaleFor},
		{"prune_schedule", s.PruneSchedule},
		{"revalidate_route", strconv.FormatBool(s.RevalidateRoute)},
		{"metrics", strconv.FormatBool(s.Metrics)},
		{"tracing", strconv.FormatBool(s.Tracing)},
	}
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if format == cli.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), summarize(cfg))
}
