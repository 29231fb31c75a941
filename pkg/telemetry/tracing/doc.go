// Package tracing provides OpenTelemetry tracing for larder.
//
// Every inbound request gets a server span through HTTPMiddleware. The
// upstream fetcher opens one span per fetch with a child span per attempt,
// so a trace shows the retry schedule and the reason a fallback was served.
//
// Spans are exported over OTLP gRPC:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// When tracing is disabled New returns a noop tracer and a nil *Tracer is
// also safe to call.
package tracing
