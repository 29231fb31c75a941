package client

import (
	"net/http"
	"time"
)

// Options adjust a single fetch. The zero value fetches with GET and the
// client's default revalidation and tags. Concurrent cached fetches share
// one proxy call only when their path, Revalidate, Tags and Header match.
type Options struct {
	// Method defaults to GET. Only GET responses are cached.
	Method string

	// Body is forwarded to the proxy.
	Body []byte

	// Header holds extra request headers.
	Header http.Header

	// Revalidate overrides how long the response stays fresh.
	Revalidate time.Duration

	// Tags override the tags the response is stored under.
	Tags []string

	// NoCache skips the cache for both reading and writing.
	NoCache bool
}

func (o *Options) method() string {
	if o == nil || o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}
