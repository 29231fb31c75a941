package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "LARDER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default(), remaining zero values are filled
// in, and the result is validated. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables from a .env file in the working
// directory are loaded first and never replace variables already set in the
// process environment.
//
// The loading sequence is:
// 1. Load .env (if present)
// 2. Load YAML from file (a missing file yields the defaults)
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	default:
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format LARDER_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.ListenAddress, "SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	setBool(&cfg.Server.CORS.Enabled, "SERVER_CORS_ENABLED")
	if val := os.Getenv(EnvPrefix + "SERVER_CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.Server.CORS.AllowedOrigins = splitList(val)
	}

	// Upstream overrides
	setString(&cfg.Upstream.BaseURL, "UPSTREAM_BASE_URL")
	setString(&cfg.Upstream.APIPrefix, "UPSTREAM_API_PREFIX")
	setString(&cfg.Upstream.Username, "UPSTREAM_USERNAME")
	setString(&cfg.Upstream.Password, "UPSTREAM_PASSWORD")
	setString(&cfg.Upstream.UserAgent, "UPSTREAM_USER_AGENT")
	setDuration(&cfg.Upstream.AttemptTimeout, "UPSTREAM_ATTEMPT_TIMEOUT")
	if val := os.Getenv(EnvPrefix + "UPSTREAM_RETRY_DELAYS"); val != "" {
		var delays []time.Duration
		for _, part := range splitList(val) {
			d, err := time.ParseDuration(part)
			if err != nil {
				delays = nil
				break
			}
			delays = append(delays, d)
		}
		if delays != nil {
			cfg.Upstream.RetryDelays = delays
		}
	}
	setBool(&cfg.Upstream.TransportCache.Enabled, "UPSTREAM_TRANSPORT_CACHE_ENABLED")
	setDuration(&cfg.Upstream.TransportCache.TTL, "UPSTREAM_TRANSPORT_CACHE_TTL")

	// Client overrides
	setString(&cfg.Client.ProxyURL, "CLIENT_PROXY_URL")
	setDuration(&cfg.Client.Revalidate, "CLIENT_REVALIDATE")
	setDuration(&cfg.Client.Timeout, "CLIENT_TIMEOUT")

	// Cache overrides
	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.SQLite.Path, "CACHE_SQLITE_PATH")
	setString(&cfg.Cache.SQLite.Driver, "CACHE_SQLITE_DRIVER")
	setString(&cfg.Cache.Bolt.Path, "CACHE_BOLT_PATH")
	setString(&cfg.Cache.PruneSchedule, "CACHE_PRUNE_SCHEDULE")
	setDuration(&cfg.Cache.StaleFor, "CACHE_STALE_FOR")
	if val := os.Getenv(EnvPrefix + "CACHE_MAX_ENTRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxEntries = i
		}
	}

	// Revalidate overrides
	setString(&cfg.Revalidate.Secret, "REVALIDATE_SECRET")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "TELEMETRY_METRICS_ENABLED")
	setString(&cfg.Telemetry.Metrics.Path, "TELEMETRY_METRICS_PATH")
	setBool(&cfg.Telemetry.Tracing.Enabled, "TELEMETRY_TRACING_ENABLED")
	setString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
}

func setString(dst *string, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
