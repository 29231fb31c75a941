package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives one measurement per completed request.
// *metrics.Collector satisfies it.
type RequestRecorder interface {
	RecordRequest(route, method string, status int, duration time.Duration)
}

// MetricsMiddleware records request counts and latency by route. It must
// wrap the ServeMux directly so the matched pattern is visible after the
// mux has served the request; unmatched requests are labeled "unmatched".
//
// Example usage:
//
//	handler = MetricsMiddleware(collector)(mux)
func MetricsMiddleware(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			recorder.RecordRequest(route, r.Method, rw.statusCode, time.Since(start))
		})
	}
}
