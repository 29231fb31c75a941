// Package telemetry groups larder's observability packages.
//
//   - logging: slog construction, request-scoped fields and credential redaction
//   - metrics: Prometheus collectors for requests, upstream attempts and caches
//   - tracing: OpenTelemetry spans for inbound requests and upstream attempts
//   - health: liveness, readiness and version endpoints
package telemetry
