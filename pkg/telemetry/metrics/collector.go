package metrics

import (
	"time"

	"pawpantry/larder/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns every Prometheus metric exported by larder and provides
// the recording methods the proxy, client and cache call into.
//
// When metrics are disabled in the configuration all recording methods are
// no-ops, so callers never need to check.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
	cacheMetrics    *CacheMetrics
}

// NewCollector creates a new metrics collector. If registry is nil a fresh
// registry with the Go runtime and process collectors is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		requestMetrics:  NewRequestMetrics(cfg, registry),
		upstreamMetrics: NewUpstreamMetrics(cfg, registry),
		cacheMetrics:    NewCacheMetrics(cfg, registry),
	}
}

// RecordRequest records an inbound HTTP request.
func (c *Collector) RecordRequest(route, method string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(route, method, status, duration)
}

// RecordAttempt records a single upstream attempt and its outcome
// ("accepted", "retryable_status", "network_error", "timeout").
func (c *Collector) RecordAttempt(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordAttempt(outcome, duration)
}

// RecordFallback records a request answered with the fallback envelope.
func (c *Collector) RecordFallback(reason string) {
	if !c.config.Enabled {
		return
	}
	c.upstreamMetrics.RecordFallback(reason)
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// RecordCacheEviction records entries removed from a cache.
func (c *Collector) RecordCacheEviction(cacheName string, count int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordEviction(cacheName, count)
}

// UpdateCacheSize updates the number of entries held by a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
