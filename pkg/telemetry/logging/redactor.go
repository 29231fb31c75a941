package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces masked values.
const Redacted = "[REDACTED]"

// defaultRedactKeys are attribute keys whose values never reach the log output.
var defaultRedactKeys = []string{"password", "authorization", "secret", "token", "api_key"}

// credentialPattern matches HTTP credentials embedded in free-form strings.
var credentialPattern = regexp.MustCompile(`\b(Basic|Bearer)\s+[A-Za-z0-9+/=._~-]{8,}`)

// Redactor masks sensitive attributes before they are written.
type Redactor struct {
	keys map[string]struct{}
}

// NewRedactor creates a Redactor for the default keys plus extra.
// Key matching is case-insensitive.
func NewRedactor(extra []string) *Redactor {
	r := &Redactor{keys: make(map[string]struct{})}
	for _, k := range defaultRedactKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extra {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	return r
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := r.keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	if a.Key != slog.MessageKey && a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); credentialPattern.MatchString(s) {
			return slog.String(a.Key, r.RedactString(s))
		}
	}
	return a
}

// RedactString masks Basic and Bearer credentials inside s.
func (r *Redactor) RedactString(s string) string {
	return credentialPattern.ReplaceAllStringFunc(s, func(m string) string {
		scheme, _, _ := strings.Cut(m, " ")
		return scheme + " " + Redacted
	})
}
