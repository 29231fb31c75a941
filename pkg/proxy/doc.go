// Package proxy holds the HTTP surface of larder: response helpers shared
// by the handlers in proxy/handlers and the middleware in proxy/middleware.
//
// # Architecture
//
//   - handlers: the /api/wp proxy endpoint, catalogue routes and
//     on-demand revalidation
//   - middleware: recovery, logging, request ID, CORS and route metrics
//   - this package: JSON writers and the error-to-status mapping
//
// Every error answer is a small JSON object:
//
//	{"error":"missing path"}
//
// # Basic Usage
//
//	if err != nil {
//	    status, msg := proxy.HandleError(err)
//	    proxy.WriteError(w, status, msg)
//	    return
//	}
//	proxy.WriteJSON(w, http.StatusOK, list)
package proxy
