package upstream

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Response headers set by the proxy endpoint.
const (
	// HeaderFallback is "1" when the body is the fallback envelope.
	HeaderFallback = "X-Fallback"

	// HeaderUpstreamStatus carries the status returned by the accepted attempt.
	HeaderUpstreamStatus = "X-Upstream-Status"
)

// FallbackError is the value of the envelope's error field.
const FallbackError = "fallback"

// Fallback reasons reported in logs, spans and metrics.
const (
	ReasonExhausted   = "exhausted"
	ReasonTimeout     = "timeout"
	ReasonCanceled    = "canceled"
	ReasonInvalidBody = "invalid_body"
)

// Request describes one logical call to the content API.
type Request struct {
	// Path is the logical API path, e.g. "/wp/v2/recipe?per_page=20".
	// Leading slashes are normalized to exactly one.
	Path string

	// Method defaults to GET.
	Method string

	// Body is sent unchanged on every attempt.
	Body []byte

	// Header holds extra request headers. Accept, User-Agent and
	// Authorization are always set by the fetcher.
	Header http.Header
}

// Response is the outcome of a fetch. When Fallback is true Body holds
// the fallback envelope and Cause explains why.
type Response struct {
	// StatusCode is the status of the accepted attempt, or 0 when no
	// attempt was accepted.
	StatusCode int

	Header http.Header
	Body   []byte

	Fallback       bool
	FallbackReason string
	Cause          error

	// Attempts is the number of attempts made.
	Attempts int
}

// FallbackEnvelope is the degraded payload returned instead of an error.
type FallbackEnvelope struct {
	Items []any  `json:"items"`
	Error string `json:"error"`
}

// fallbackBody is the serialized FallbackEnvelope.
var fallbackBody = []byte(`{"items":[],"error":"fallback"}`)

// FallbackBody returns a copy of the serialized fallback envelope.
func FallbackBody() []byte {
	return bytes.Clone(fallbackBody)
}

// IsFallbackBody reports whether body is exactly the two-key fallback
// envelope: an empty "items" array and "error" equal to "fallback".
// Payloads with extra keys do not match.
func IsFallbackBody(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 2 {
		return false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(fields["items"], &items); err != nil || items == nil || len(items) != 0 {
		return false
	}

	var msg string
	if err := json.Unmarshal(fields["error"], &msg); err != nil {
		return false
	}
	return msg == FallbackError
}
