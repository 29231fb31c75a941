// Package handlers provides the HTTP handlers behind larder's routes.
//
// # Handler Types
//
// Proxy:
//   - WPHandler: GET /api/wp?path=<logical path>, the resilient proxy in
//     front of the WordPress REST API
//
// Catalogue (through the content service and client):
//   - ContentHandler.Recipes: GET /api/recipes
//   - ContentHandler.Recipe: GET /api/recipes/{slug}
//   - ContentHandler.Articles: GET /api/articles
//   - ContentHandler.FAQs: GET /api/faqs
//
// Cache control:
//   - RevalidateHandler: POST /api/revalidate?tag=wp
//
// Liveness, readiness and version are served by the telemetry/health
// package.
//
// # Proxy Contract
//
// WPHandler answers 200 whatever the upstream did:
//
//	200  body = upstream body     X-Upstream-Status: <status>
//	200  body = fallback envelope X-Fallback: 1
//	400  {"error":"missing path"} (no upstream call)
//
// The upstream status is reported in X-Upstream-Status, including
// pass-through 4xx such as 404, so callers that care can still see it.
//
// # Degraded Catalogue
//
// The catalogue handlers never fail because the content API is down. A
// fallback, or a failure to reach the proxy at all, is answered with an
// empty listing and "fallback": true.
package handlers
