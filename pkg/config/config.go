package config

import (
	"net"
	"time"
)

// Config is the root configuration structure for larder.
// It contains the HTTP server settings, the upstream WordPress connection,
// the content client and its data cache, and telemetry settings.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the connection settings for the WordPress JSON API
	// that the proxy endpoint shields callers from.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Client contains settings for the content client that calls the proxy
	// endpoint on behalf of the catalogue routes and the fetch command.
	Client ClientConfig `yaml:"client"`

	// Cache contains configuration for the data cache used by the client.
	Cache CacheConfig `yaml:"cache"`

	// Revalidate contains settings for the on-demand tag revalidation route.
	Revalidate RevalidateConfig `yaml:"revalidate"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must leave room for a full retry budget against the
	// upstream (4 attempts of 10s plus backoff).
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers exposed to the browser.
	// Default: ["X-Request-ID", "X-Fallback", "X-Upstream-Status"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials sets Access-Control-Allow-Credentials.
	AllowCredentials bool `yaml:"allow_credentials"`
}

// UpstreamConfig contains configuration for the WordPress content API.
// These values are read once at startup and never change at runtime.
type UpstreamConfig struct {
	// BaseURL is the origin of the WordPress installation.
	// A trailing slash is stripped when building request URLs.
	// Example: "https://cms.example.com"
	BaseURL string `yaml:"base_url"`

	// APIPrefix is the REST namespace appended to BaseURL.
	// Default: "/wp-json"
	APIPrefix string `yaml:"api_prefix"`

	// Username and Password enable HTTP Basic authentication when both are set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// UserAgent is sent on every upstream request.
	// Default: "larder-wp-proxy/1.0"
	UserAgent string `yaml:"user_agent"`

	// AttemptTimeout bounds each individual upstream attempt.
	// Default: 10s
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// RetryDelays are the waits before attempts 2..n. The number of attempts
	// is len(RetryDelays)+1.
	// Default: [150ms, 400ms, 800ms]
	RetryDelays []time.Duration `yaml:"retry_delays"`

	// RetryableStatuses are upstream statuses that trigger another attempt.
	// Default: [403, 429, 500, 502, 503, 504]
	RetryableStatuses []int `yaml:"retryable_statuses"`

	// MaxIdleConns and IdleConnTimeout tune the upstream connection pool.
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// TransportCache configures the optional response cache that honors the
	// proxy's cache-eligibility hint for GET requests.
	TransportCache TransportCacheConfig `yaml:"transport_cache"`
}

// TransportCacheConfig configures the upstream transport cache.
type TransportCacheConfig struct {
	// Enabled turns the transport cache on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// TTL is how long a cached upstream response is served.
	// Default: 60s
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the number of cached responses.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`
}

// ClientConfig contains configuration for the content client.
type ClientConfig struct {
	// ProxyURL is the base URL of the server hosting the proxy endpoint.
	// When empty, it is derived from server.listen_address.
	ProxyURL string `yaml:"proxy_url"`

	// ProxyPath is the route of the proxy endpoint.
	// Default: "/api/wp"
	ProxyPath string `yaml:"proxy_path"`

	// Revalidate is how long a cached response stays fresh.
	// Default: 300s
	Revalidate time.Duration `yaml:"revalidate"`

	// Tags are attached to every cached response by default.
	// Default: ["wp"]
	Tags []string `yaml:"tags"`

	// Timeout bounds a single call to the proxy endpoint.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig contains configuration for the client data cache.
type CacheConfig struct {
	// Backend selects the store implementation.
	// Options: "memory", "sqlite", "bolt"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// MaxEntries bounds the memory store; the oldest entries are evicted first.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// StaleFor is how long an expired entry is kept to be served when the
	// upstream is unavailable.
	// Default: 24h
	StaleFor time.Duration `yaml:"stale_for"`

	// PruneSchedule is the cron expression for removing entries past their
	// stale window. Empty disables scheduled pruning.
	// Default: "*/10 * * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// SQLite contains configuration for the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Bolt contains configuration for the bolt backend.
	Bolt BoltConfig `yaml:"bolt"`
}

// BoltConfig contains configuration for the embedded bbolt cache backend.
type BoltConfig struct {
	// Path is the database file.
	// Default: "data/cache.bolt"
	Path string `yaml:"path"`

	// OpenTimeout bounds waiting for the file lock held by another process.
	// Default: 1s
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// SQLiteConfig contains configuration for the sqlite cache backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/cache.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long sqlite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RevalidateConfig contains settings for on-demand revalidation.
type RevalidateConfig struct {
	// Secret must be presented in the X-Revalidate-Secret header.
	// When empty the revalidation route is disabled.
	Secret string `yaml:"secret"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// RedactKeys are additional attribute keys whose values are masked.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus metric namespace.
	// Default: "larder"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	Subsystem string `yaml:"subsystem"`

	// LatencyBuckets are histogram buckets in seconds for upstream and
	// inbound request latency.
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "larder"
	ServiceName string `yaml:"service_name"`

	// Sampler is the sampling strategy: "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler (0.0 to 1.0).
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// ResolvedProxyURL returns Client.ProxyURL, or the URL of this process's
// own listener when it is unset. Wildcard listen hosts resolve to loopback.
func (c *Config) ResolvedProxyURL() string {
	if c.Client.ProxyURL != "" {
		return c.Client.ProxyURL
	}

	host, port, err := net.SplitHostPort(c.Server.ListenAddress)
	if err != nil {
		return "http://" + DefaultListenAddress
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
