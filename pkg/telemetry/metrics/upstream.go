package metrics

import (
	"time"

	"pawpantry/larder/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to the WordPress content API.
//
// Metrics:
//   - larder_upstream_attempts_total: Attempts by outcome
//   - larder_upstream_attempt_duration_seconds: Latency of individual attempts
//   - larder_upstream_fallbacks_total: Requests answered with the fallback envelope, by reason
type UpstreamMetrics struct {
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempts_total",
				Help:      "Total number of upstream attempts by outcome",
			},
			[]string{"outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_attempt_duration_seconds",
				Help:      "Upstream attempt latency in seconds",
				Buckets:   cfg.LatencyBuckets,
			},
			[]string{"outcome"},
		),

		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_fallbacks_total",
				Help:      "Total number of requests answered with the fallback envelope",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(um.attempts, um.latency, um.fallbacks)

	return um
}

// RecordAttempt records one upstream attempt.
//
// Outcomes:
//   - "accepted": a non-retryable status was received
//   - "retryable_status": one of the retryable statuses was received
//   - "network_error": the transport failed without timing out
//   - "timeout": the attempt exceeded its deadline
func (um *UpstreamMetrics) RecordAttempt(outcome string, duration time.Duration) {
	um.attempts.WithLabelValues(outcome).Inc()
	um.latency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordFallback records a fallback response.
//
// Reasons:
//   - "exhausted": every attempt returned a retryable status or failed
//   - "timeout": an attempt timed out
//   - "canceled": the inbound request went away
//   - "invalid_body": the accepted upstream body was not JSON
func (um *UpstreamMetrics) RecordFallback(reason string) {
	um.fallbacks.WithLabelValues(reason).Inc()
}
