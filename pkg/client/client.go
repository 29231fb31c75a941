package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/telemetry/tracing"
	"pawpantry/larder/pkg/upstream"
)

// CacheName labels the client's data cache in metrics.
const CacheName = "data"

// Client calls the proxy endpoint. It is safe for concurrent use.
type Client struct {
	endpoint   string
	hc         *http.Client
	revalidate time.Duration
	tags       []string

	store    cache.Store
	recorder cache.Recorder
	tracer   *tracing.Tracer
	logger   *slog.Logger
	group    singleflight.Group

	now func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used to reach the proxy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithStore enables the data cache.
func WithStore(s cache.Store) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithRecorder sets the cache metrics recorder.
func WithRecorder(r cache.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the proxy endpoint at cfg.ProxyURL + cfg.ProxyPath.
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	if cfg.ProxyURL == "" {
		return nil, errors.New("client proxy URL is required")
	}
	if _, err := url.Parse(cfg.ProxyURL); err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if cfg.ProxyPath == "" {
		cfg.ProxyPath = config.DefaultProxyPath
	}
	if cfg.Revalidate == 0 {
		cfg.Revalidate = config.DefaultRevalidate
	}
	if cfg.Tags == nil {
		cfg.Tags = []string{config.DefaultRevalidateTag}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultClientTimeout
	}

	c := &Client{
		endpoint:   strings.TrimRight(cfg.ProxyURL, "/") + cfg.ProxyPath,
		hc:         &http.Client{Timeout: cfg.Timeout},
		revalidate: cfg.Revalidate,
		tags:       slices.Clone(cfg.Tags),
		recorder:   noopRecorder{},
		logger:     slog.Default().With("component", "client"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// URL returns the proxy URL for a logical path.
func (c *Client) URL(path string) string {
	return c.endpoint + "?path=" + url.QueryEscape(path)
}

// Store returns the data cache, or nil when caching is disabled.
func (c *Client) Store() cache.Store {
	return c.store
}

// InvalidateTag drops every cached response carrying tag.
func (c *Client) InvalidateTag(ctx context.Context, tag string) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	n, err := c.store.InvalidateTag(ctx, tag)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate tag %q: %w", tag, err)
	}
	c.recorder.RecordCacheEviction(CacheName, n)
	c.updateSize(ctx)

	c.logger.Info("invalidated cached responses", "tag", tag, "count", n)
	return n, nil
}

type rawResult struct {
	body     []byte
	fallback bool
	stale    bool
}

func (c *Client) fetch(ctx context.Context, path string, opts *Options) (rawResult, error) {
	if path == "" {
		return rawResult{}, &FetchError{Path: path, Err: upstream.ErrMissingPath}
	}

	ctx, span := c.tracer.Start(ctx, "client.fetch")
	defer span.End()

	if !c.cacheable(opts) {
		res, err := c.call(ctx, path, opts)
		tracing.SetStatus(span, err)
		return res, err
	}

	now := c.now()
	var stale *cache.Entry

	entry, err := c.store.Get(ctx, path)
	switch {
	case err == nil && entry.Fresh(now):
		c.recorder.RecordCacheHit(CacheName)
		tracing.SetCacheAttributes(span, true, CacheName)
		return rawResult{body: entry.Body}, nil
	case err == nil:
		stale = entry
	case !errors.Is(err, cache.ErrNotFound):
		c.logger.Warn("data cache read failed", "path", path, "error", err)
	}
	c.recorder.RecordCacheMiss(CacheName)
	tracing.SetCacheAttributes(span, false, CacheName)

	// The shared call outlives any single caller; each caller stops
	// waiting when its own context ends.
	flight := c.group.DoChan(flightKey(path, opts), func() (any, error) {
		callCtx := context.WithoutCancel(ctx)
		res, err := c.call(callCtx, path, opts)
		if err != nil || res.fallback {
			return res, err
		}
		c.save(callCtx, path, res.body, opts)
		return res, nil
	})

	var res rawResult
	select {
	case <-ctx.Done():
		err := &FetchError{Path: path, Err: ctx.Err()}
		tracing.SetError(span, err)
		return rawResult{}, err
	case r := <-flight:
		if r.Err != nil {
			tracing.SetError(span, r.Err)
			return rawResult{}, r.Err
		}
		res = r.Val.(rawResult)
	}

	if res.fallback && stale != nil {
		c.logger.Warn("serving stale response", "path", path, "expired_at", stale.ExpiresAt)
		return rawResult{body: stale.Body, stale: true}, nil
	}
	return res, nil
}

// flightKey groups concurrent fetches that send the same request and
// store the same entry.
func flightKey(path string, opts *Options) string {
	if opts == nil {
		opts = &Options{}
	}
	var b strings.Builder
	b.WriteString(path)
	b.WriteString("\x00")
	b.WriteString(opts.Revalidate.String())
	b.WriteString("\x00")
	b.WriteString(strings.Join(opts.Tags, ","))
	for _, key := range slices.Sorted(maps.Keys(opts.Header)) {
		b.WriteString("\x00")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(strings.Join(opts.Header[key], ","))
	}
	return b.String()
}

func (c *Client) cacheable(opts *Options) bool {
	if c.store == nil || opts.method() != http.MethodGet {
		return false
	}
	return opts == nil || !opts.NoCache
}

// call makes one request to the proxy endpoint.
func (c *Client) call(ctx context.Context, path string, opts *Options) (rawResult, error) {
	var body io.Reader
	if opts != nil && opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method(), c.URL(path), body)
	if err != nil {
		return rawResult{}, &FetchError{Path: path, Err: err}
	}
	if opts != nil {
		for key, values := range opts.Header {
			req.Header[key] = slices.Clone(values)
		}
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := c.hc.Do(req)
	if err != nil {
		return rawResult{}, &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rawResult{}, &FetchError{Path: path, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResult{}, &FetchError{Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	// The header is authoritative; the body shape is checked for proxies
	// that do not set it.
	fallback := resp.Header.Get(upstream.HeaderFallback) == "1" || upstream.IsFallbackBody(data)
	return rawResult{body: data, fallback: fallback}, nil
}

func (c *Client) save(ctx context.Context, path string, body []byte, opts *Options) {
	revalidate, tags := c.revalidate, c.tags
	if opts != nil {
		if opts.Revalidate > 0 {
			revalidate = opts.Revalidate
		}
		if opts.Tags != nil {
			tags = opts.Tags
		}
	}
	if revalidate <= 0 {
		return
	}

	now := c.now()
	err := c.store.Set(ctx, &cache.Entry{
		Key:       path,
		Body:      body,
		Tags:      tags,
		StoredAt:  now,
		ExpiresAt: now.Add(revalidate),
	})
	if err != nil {
		c.logger.Warn("data cache write failed", "path", path, "error", err)
		return
	}
	c.updateSize(ctx)
}

func (c *Client) updateSize(ctx context.Context) {
	if n, err := c.store.Len(ctx); err == nil {
		c.recorder.UpdateCacheSize(CacheName, n)
	}
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheHit(string)           {}
func (noopRecorder) RecordCacheMiss(string)          {}
func (noopRecorder) RecordCacheEviction(string, int) {}
func (noopRecorder) UpdateCacheSize(string, int)     {}
