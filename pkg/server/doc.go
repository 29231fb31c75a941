// Package server provides larder's HTTP server.
//
// The server mounts the WordPress proxy endpoint, the catalogue routes
// built on the content client, on-demand revalidation, and the
// operational endpoints:
//
//	GET  /api/wp?path=...        resilient upstream proxy
//	GET  /api/recipes            recipe listing (q, category, pet_type)
//	GET  /api/recipes/{slug}     single recipe
//	GET  /api/articles           article listing
//	GET  /api/faqs               FAQ listing
//	POST /api/revalidate?tag=... cache invalidation (X-Revalidate-Secret)
//	     /health /ready /version liveness, readiness, build info
//	GET  /metrics                Prometheus exposition
//
// # Middleware
//
// Requests pass through, outermost first: recovery, logging, request ID,
// tracing, CORS, metrics. Metrics wraps the mux directly so it can label
// requests with the matched route pattern.
//
// # Basic Usage
//
//	srv := server.NewServer(cfg, server.Dependencies{
//	    Fetcher: fetcher,
//	    Content: content.NewService(c, 0),
//	    Health:  checker,
//	    Metrics: collector,
//	})
//
//	// Blocks until ctx is canceled, then drains in-flight requests for
//	// up to cfg.Server.ShutdownTimeout.
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Tests can bind an ephemeral port with Serve, or exercise routing
// without a socket through Handler.
package server
