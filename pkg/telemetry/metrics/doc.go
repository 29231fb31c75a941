// Package metrics provides Prometheus metrics collection for larder.
//
// # Metrics Categories
//
//   - Request Metrics: inbound request count and duration by route
//   - Upstream Metrics: attempts by outcome, attempt latency, fallbacks by reason
//   - Cache Metrics: hits, misses, entries and evictions per cache
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.RecordAttempt("retryable_status", 120*time.Millisecond)
//	collector.RecordFallback("exhausted")
//	collector.RecordCacheHit("data")
//
//	mux.Handle("/metrics", collector.Handler())
//
// The collector satisfies the small recorder interfaces declared by the
// upstream, cache and client packages, so those packages never import
// Prometheus directly.
//
// # Prometheus Endpoint
//
//	# HELP larder_upstream_fallbacks_total Total number of requests answered with the fallback envelope
//	# TYPE larder_upstream_fallbacks_total counter
//	larder_upstream_fallbacks_total{reason="exhausted"} 3
package metrics
