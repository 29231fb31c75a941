// Package middleware provides the HTTP middleware wrapped around larder's
// routes.
//
// # Middleware Chain
//
// The server assembles the chain from the outside in:
//
//	handler = Recovery(Logging(RequestID(Tracing(CORS(Metrics(mux))))))
//
// Metrics sits directly on the mux so it can label requests with the
// matched route pattern ("GET /api/recipes/{slug}") rather than the raw
// path.
//
// # Request ID
//
// RequestIDMiddleware assigns a UUID v4 unless the caller sent one:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored with logging.WithRequestID, so every log record written
// with the request context carries it.
//
// # Logging
//
// LoggingMiddleware writes one record per request with method, path,
// status, latency and whether the body was the fallback envelope. 5xx are
// logged at error level and 4xx at warn.
//
// # CORS
//
// CORSMiddleware is configured from server.cors. X-Fallback,
// X-Upstream-Status and X-Request-ID are always exposed so browser code can
// tell a degraded answer from real content. Preflights from unknown origins
// get 403:
//
//	server:
//	  cors:
//	    enabled: true
//	    allowed_origins: ["https://pawpantry.example"]
//
// # Recovery
//
// RecoveryMiddleware turns a panic into a 500 with {"error":"internal server
// error"} and logs the stack. http.ErrAbortHandler is re-raised so the
// server can abort the connection.
//
// There is no per-request timeout middleware: the upstream fetcher bounds
// every attempt itself and the proxy must answer 200 even when the
// content API is slow.
package middleware
