// Package health implements the liveness, readiness and version endpoints.
//
// Components register a CheckFunc with the Checker; the readiness endpoint
// runs them concurrently, each bounded by the checker timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("upstream", fetcher.Health().Check)
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
