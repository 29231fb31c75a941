package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/upstream"
)

// proxyMarkers are always readable by browser code, whatever the
// configured exposed headers say.
var proxyMarkers = []string{RequestIDHeader, upstream.HeaderFallback, upstream.HeaderUpstreamStatus}

// corsPolicy is server.cors resolved once into header values.
type corsPolicy struct {
	origins     []string
	anyOrigin   bool
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg config.CORSConfig) *corsPolicy {
	exposed := slices.Clone(cfg.ExposedHeaders)
	for _, h := range proxyMarkers {
		if !slices.ContainsFunc(exposed, func(e string) bool { return strings.EqualFold(e, h) }) {
			exposed = append(exposed, h)
		}
	}

	p := &corsPolicy{
		origins:     cfg.AllowedOrigins,
		anyOrigin:   slices.Contains(cfg.AllowedOrigins, "*"),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		exposed:     strings.Join(exposed, ", "),
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	return p.anyOrigin || slices.Contains(p.origins, origin)
}

// allowOrigin is the Access-Control-Allow-Origin value. Credentialed
// responses never carry the wildcard.
func (p *corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin && !p.credentials {
		return "*"
	}
	return origin
}

// CORSMiddleware applies server.cors to browser requests.
//
// Allowed origins get Access-Control-Allow-Origin and can read X-Fallback,
// X-Upstream-Status and X-Request-ID. A preflight (OPTIONS carrying
// Access-Control-Request-Method) is answered here with 204, or 403 when
// the origin is not allowed. Any other OPTIONS request reaches the mux.
//
//	handler = CORSMiddleware(cfg.Server.CORS)(handler)
func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !policy.allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", policy.allowOrigin(origin))
			if policy.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				h.Set("Access-Control-Expose-Headers", policy.exposed)
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			if policy.methods != "" {
				h.Set("Access-Control-Allow-Methods", policy.methods)
			}
			if policy.headers != "" {
				h.Set("Access-Control-Allow-Headers", policy.headers)
			}
			if policy.maxAge != "" {
				h.Set("Access-Control-Max-Age", policy.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
