package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys under the "larder.*" namespace.
const (
	AttrRequestID = "larder.request_id"

	AttrUpstreamPath   = "larder.upstream.path"
	AttrUpstreamMethod = "larder.upstream.method"
	AttrAttempt        = "larder.upstream.attempt"
	AttrOutcome        = "larder.upstream.outcome"
	AttrStatusCode     = "larder.upstream.status_code"
	AttrFallback       = "larder.upstream.fallback"
	AttrFallbackReason = "larder.upstream.fallback_reason"

	AttrCacheHit  = "larder.cache.hit"
	AttrCacheName = "larder.cache.name"
)

// SetUpstreamAttributes sets the logical path and method of an upstream fetch.
func SetUpstreamAttributes(span trace.Span, path, method string) {
	span.SetAttributes(
		attribute.String(AttrUpstreamPath, path),
		attribute.String(AttrUpstreamMethod, method),
	)
}

// SetAttemptAttributes records the outcome of one upstream attempt.
func SetAttemptAttributes(span trace.Span, attempt int, outcome string, status int) {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrAttempt, attempt),
		attribute.String(AttrOutcome, outcome),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(AttrStatusCode, status))
	}
	span.SetAttributes(attrs...)
}

// SetFallbackAttributes marks a fetch that was answered with the fallback envelope.
func SetFallbackAttributes(span trace.Span, reason string) {
	span.SetAttributes(
		attribute.Bool(AttrFallback, true),
		attribute.String(AttrFallbackReason, reason),
	)
}

// SetCacheAttributes records a cache lookup result.
func SetCacheAttributes(span trace.Span, hit bool, cacheName string) {
	span.SetAttributes(
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	)
}
