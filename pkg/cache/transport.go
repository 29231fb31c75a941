package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderCache reports whether a response was served by Transport ("HIT")
// or fetched and stored ("MISS").
const HeaderCache = "X-Cache"

// Transport is an http.RoundTripper that serves repeated GET requests from
// a Store for a fixed TTL. Requests carrying Cache-Control: no-store and
// non-GET requests always go to Base. Only 200 responses are stored.
type Transport struct {
	Base  http.RoundTripper
	Store Store
	TTL   time.Duration

	// Tags are attached to every stored response so tag invalidation
	// reaches this cache too.
	Tags []string

	// Name labels metrics. Default: "transport".
	Name     string
	Recorder Recorder

	now func() time.Time
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cacheable(req) {
		return t.base().RoundTrip(req)
	}

	ctx := req.Context()
	key := transportKey(req)
	recorder := t.recorder()

	entry, err := t.Store.Get(ctx, key)
	switch {
	case err == nil && entry.Fresh(t.clock()):
		recorder.RecordCacheHit(t.name())
		return cachedResponse(req, entry), nil
	case err != nil && !errors.Is(err, ErrNotFound):
		slog.Warn("transport cache read failed", "key", key, "error", err)
	}
	recorder.RecordCacheMiss(t.name())

	resp, err := t.base().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Set(HeaderCache, "MISS")

	now := t.clock()
	if err := t.Store.Set(ctx, &Entry{
		Key:       key,
		Body:      body,
		Tags:      t.Tags,
		StoredAt:  now,
		ExpiresAt: now.Add(t.TTL),
	}); err != nil {
		slog.Warn("transport cache write failed", "key", key, "error", err)
	}

	return resp, nil
}

func (t *Transport) cacheable(req *http.Request) bool {
	if t.Store == nil || t.TTL <= 0 || req.Method != http.MethodGet {
		return false
	}
	return !strings.Contains(strings.ToLower(req.Header.Get("Cache-Control")), "no-store")
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) recorder() Recorder {
	if t.Recorder != nil {
		return t.Recorder
	}
	return noopRecorder{}
}

func (t *Transport) name() string {
	if t.Name != "" {
		return t.Name
	}
	return "transport"
}

func (t *Transport) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// transportKey separates entries by credentials so responses fetched with
// one identity are never served to another.
func transportKey(req *http.Request) string {
	return "GET " + req.URL.String() + " auth=" + strconv.FormatBool(req.Header.Get("Authorization") != "")
}

func cachedResponse(req *http.Request, entry *Entry) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(HeaderCache, "HIT")

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}
