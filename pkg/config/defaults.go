package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultCORSMaxAge      = 3600

	// Upstream defaults
	DefaultAPIPrefix          = "/wp-json"
	DefaultUserAgent          = "larder-wp-proxy/1.0"
	DefaultAttemptTimeout     = 10 * time.Second
	DefaultMaxIdleConns       = 100
	DefaultIdleConnTimeout    = 90 * time.Second
	DefaultTransportCacheTTL  = 60 * time.Second
	DefaultTransportCacheSize = 1000

	// Client defaults
	DefaultProxyPath         = "/api/wp"
	DefaultRevalidate        = 300 * time.Second
	DefaultClientTimeout     = 60 * time.Second
	DefaultRevalidateTag     = "wp"
	DefaultCacheBackend      = "memory"
	DefaultCacheMaxEntries   = 10000
	DefaultCacheStaleFor     = 24 * time.Hour
	DefaultCachePrune        = "*/10 * * * *"
	DefaultSQLitePath        = "data/cache.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultBoltPath          = "data/cache.bolt"
	DefaultBoltOpenTimeout   = time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "larder"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingService   = "larder"
	DefaultTracingSampler   = "always"
	DefaultTracingTimeout   = 10 * time.Second
)

// DefaultRetryDelays returns the waits before the second, third and fourth
// upstream attempts.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{150 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
}

// DefaultRetryableStatuses returns the upstream statuses that are retried.
func DefaultRetryableStatuses() []int {
	return []int{403, 429, 500, 502, 503, 504}
}

// Default returns a configuration populated with every default value.
// Boolean switches whose default is true are only set here, so file
// loading decodes on top of this value rather than on an empty Config.
func Default() *Config {
	cfg := &Config{}
	cfg.Cache.SQLite.WALMode = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field with its default.
// Values that are already set are preserved.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS defaults
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID", "X-Revalidate-Secret"}
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = []string{"X-Request-ID", "X-Fallback", "X-Upstream-Status"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Upstream defaults
	if cfg.Upstream.APIPrefix == "" {
		cfg.Upstream.APIPrefix = DefaultAPIPrefix
	}
	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = DefaultUserAgent
	}
	if cfg.Upstream.AttemptTimeout == 0 {
		cfg.Upstream.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.Upstream.RetryDelays == nil {
		cfg.Upstream.RetryDelays = DefaultRetryDelays()
	}
	if len(cfg.Upstream.RetryableStatuses) == 0 {
		cfg.Upstream.RetryableStatuses = DefaultRetryableStatuses()
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if cfg.Upstream.TransportCache.TTL == 0 {
		cfg.Upstream.TransportCache.TTL = DefaultTransportCacheTTL
	}
	if cfg.Upstream.TransportCache.MaxEntries == 0 {
		cfg.Upstream.TransportCache.MaxEntries = DefaultTransportCacheSize
	}

	// Client defaults
	if cfg.Client.ProxyPath == "" {
		cfg.Client.ProxyPath = DefaultProxyPath
	}
	if cfg.Client.Revalidate == 0 {
		cfg.Client.Revalidate = DefaultRevalidate
	}
	if len(cfg.Client.Tags) == 0 {
		cfg.Client.Tags = []string{DefaultRevalidateTag}
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = DefaultClientTimeout
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Cache.StaleFor == 0 {
		cfg.Cache.StaleFor = DefaultCacheStaleFor
	}
	if cfg.Cache.PruneSchedule == "" {
		cfg.Cache.PruneSchedule = DefaultCachePrune
	}
	if cfg.Cache.SQLite.Path == "" {
		cfg.Cache.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Cache.SQLite.Driver == "" {
		cfg.Cache.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Cache.SQLite.BusyTimeout == 0 {
		cfg.Cache.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Cache.Bolt.Path == "" {
		cfg.Cache.Bolt.Path = DefaultBoltPath
	}
	if cfg.Cache.Bolt.OpenTimeout == 0 {
		cfg.Cache.Bolt.OpenTimeout = DefaultBoltOpenTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.LatencyBuckets) == 0 {
		cfg.Telemetry.Metrics.LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}
