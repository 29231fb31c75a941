package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultUnhealthyAfter is the number of consecutive fallbacks after which
// the upstream is reported unhealthy.
const DefaultUnhealthyAfter = 3

// HealthSnapshot is a point-in-time view of upstream health.
type HealthSnapshot struct {
	Healthy              bool      `json:"healthy"`
	TotalRequests        int64     `json:"total_requests"`
	Fallbacks            int64     `json:"fallbacks"`
	ConsecutiveFallbacks int       `json:"consecutive_fallbacks"`
	LastSuccess          time.Time `json:"last_success,omitzero"`
	LastFallback         time.Time `json:"last_fallback,omitzero"`
	LastFallbackReason   string    `json:"last_fallback_reason,omitempty"`
	LastError            string    `json:"last_error,omitempty"`
}

// Health tracks fetch outcomes. It never blocks traffic: an unhealthy
// upstream is still called on every request.
type Health struct {
	mu             sync.RWMutex
	snapshot       HealthSnapshot
	unhealthyAfter int
	now            func() time.Time
}

// NewHealth creates a tracker that reports unhealthy after unhealthyAfter
// consecutive fallbacks.
func NewHealth(unhealthyAfter int) *Health {
	if unhealthyAfter <= 0 {
		unhealthyAfter = DefaultUnhealthyAfter
	}
	return &Health{
		snapshot:       HealthSnapshot{Healthy: true},
		unhealthyAfter: unhealthyAfter,
		now:            time.Now,
	}
}

// RecordSuccess records an accepted fetch.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshot.TotalRequests++
	h.snapshot.ConsecutiveFallbacks = 0
	h.snapshot.Healthy = true
	h.snapshot.LastSuccess = h.now()
}

// RecordFallback records a fetch answered with the fallback envelope.
// Cancellations by the caller say nothing about the upstream and only
// count towards the totals.
func (h *Health) RecordFallback(reason string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snapshot.TotalRequests++
	h.snapshot.Fallbacks++
	h.snapshot.LastFallback = h.now()
	h.snapshot.LastFallbackReason = reason
	if err != nil {
		h.snapshot.LastError = err.Error()
	}

	if reason == ReasonCanceled {
		return
	}

	h.snapshot.ConsecutiveFallbacks++
	if h.snapshot.Healthy && h.snapshot.ConsecutiveFallbacks >= h.unhealthyAfter {
		h.snapshot.Healthy = false
		slog.Warn("upstream marked unhealthy",
			"consecutive_fallbacks", h.snapshot.ConsecutiveFallbacks,
			"reason", reason,
			"error", err,
		)
	}
}

// Snapshot returns a copy of the current state.
func (h *Health) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// IsHealthy reports whether fewer than the threshold of consecutive
// fallbacks have been served.
func (h *Health) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot.Healthy
}

// Check is a readiness check: it returns an error while unhealthy.
func (h *Health) Check(_ context.Context) error {
	s := h.Snapshot()
	if s.Healthy {
		return nil
	}
	return fmt.Errorf("%d consecutive fallbacks (last reason: %s)", s.ConsecutiveFallbacks, s.LastFallbackReason)
}
