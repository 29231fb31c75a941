package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/telemetry/tracing"
)

// Attempt outcomes reported to the Recorder.
const (
	OutcomeAccepted        = "accepted"
	OutcomeRetryableStatus = "retryable_status"
	OutcomeNetworkError    = "network_error"
	OutcomeTimeout         = "timeout"
)

// Recorder receives per-attempt and per-fallback measurements.
// *metrics.Collector satisfies it.
type Recorder interface {
	RecordAttempt(outcome string, duration time.Duration)
	RecordFallback(reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(string, time.Duration) {}
func (noopRecorder) RecordFallback(string)               {}

// Fetcher calls the content API with a bounded retry schedule and degrades
// to the fallback envelope instead of failing. It is safe for concurrent
// use; its configuration is fixed at construction.
type Fetcher struct {
	cfg        config.UpstreamConfig
	client     *http.Client
	delays     []time.Duration
	retryable  map[int]struct{}
	authHeader string

	recorder Recorder
	tracer   *tracing.Tracer
	health   *Health
	logger   *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTransport replaces the HTTP transport, e.g. with a caching RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = rt
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithTracer sets the tracer used for fetch and attempt spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(f *Fetcher) {
		f.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewTransport returns the pooled transport used for upstream calls.
func NewTransport(cfg config.UpstreamConfig) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// New creates a Fetcher. cfg is copied; later changes to the caller's
// value have no effect.
func New(cfg config.UpstreamConfig, opts ...Option) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base URL is required")
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = config.DefaultAPIPrefix
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = config.DefaultAttemptTimeout
	}
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = config.DefaultRetryDelays()
	}
	if cfg.RetryableStatuses == nil {
		cfg.RetryableStatuses = config.DefaultRetryableStatuses()
	}

	f := &Fetcher{
		cfg: cfg,
		// Attempts are bounded by their own context, not a client timeout.
		client:     &http.Client{Transport: NewTransport(cfg)},
		delays:     append([]time.Duration{0}, cfg.RetryDelays...),
		retryable:  make(map[int]struct{}, len(cfg.RetryableStatuses)),
		authHeader: BasicAuth(cfg.Username, cfg.Password),
		recorder:   noopRecorder{},
		health:     NewHealth(DefaultUnhealthyAfter),
		logger:     slog.Default().With("component", "upstream"),
		sleep:      sleepContext,
	}
	for _, code := range cfg.RetryableStatuses {
		f.retryable[code] = struct{}{}
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Health returns the fetcher's health tracker.
func (f *Fetcher) Health() *Health {
	return f.health
}

// MaxAttempts returns the number of attempts made before falling back.
func (f *Fetcher) MaxAttempts() int {
	return len(f.delays)
}

// URL returns the upstream URL for a logical path.
func (f *Fetcher) URL(path string) string {
	return BuildURL(f.cfg.BaseURL, f.cfg.APIPrefix, path)
}

// Fetch performs req against the content API.
//
// A status outside the retryable set is accepted immediately and returned
// with its body, 404 included. A retryable status or a transport error
// moves on to the next attempt after its delay. A timed-out attempt ends
// the schedule. When no attempt is accepted the response carries the
// fallback envelope with Fallback set; Fetch itself only errors on an
// invalid request.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	if req.Path == "" {
		return nil, ErrMissingPath
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	ctx, span := f.tracer.Start(ctx, "upstream.fetch")
	defer span.End()
	tracing.SetUpstreamAttributes(span, NormalizePath(req.Path), req.Method)

	logger := f.logger.With("path", req.Path, "method", req.Method)

	var lastErr error
	for attempt := 1; attempt <= len(f.delays); attempt++ {
		if delay := f.delays[attempt-1]; delay > 0 {
			logger.Debug("retrying upstream request",
				"attempt", attempt,
				"max_attempts", len(f.delays),
				"delay", delay,
			)
			if err := f.sleep(ctx, delay); err != nil {
				return f.fallback(ctx, req, attempt-1, ReasonCanceled, err), nil
			}
		}

		res := f.attempt(ctx, req, attempt)

		switch res.outcome {
		case OutcomeAccepted:
			if !json.Valid(res.body) {
				cause := &InvalidBodyError{Path: req.Path, StatusCode: res.status, Size: len(res.body)}
				resp := f.fallback(ctx, req, attempt, ReasonInvalidBody, cause)
				resp.StatusCode = res.status
				return resp, nil
			}
			f.health.RecordSuccess()
			tracing.SetStatus(span, nil)
			return &Response{
				StatusCode: res.status,
				Header:     res.header,
				Body:       res.body,
				Attempts:   attempt,
			}, nil

		case OutcomeTimeout:
			reason := ReasonTimeout
			if ctx.Err() != nil {
				reason = ReasonCanceled
			}
			return f.fallback(ctx, req, attempt, reason, &TimeoutError{
				Path:    req.Path,
				Attempt: attempt,
				Timeout: f.cfg.AttemptTimeout,
				Cause:   res.err,
			}), nil

		case OutcomeRetryableStatus:
			lastErr = &StatusError{StatusCode: res.status, Attempt: attempt}
			logger.Warn("upstream returned retryable status",
				"status", res.status,
				"attempt", attempt,
			)

		case OutcomeNetworkError:
			lastErr = res.err
			logger.Warn("upstream request failed",
				"attempt", attempt,
				"error", res.err,
			)
		}
	}

	return f.fallback(ctx, req, len(f.delays), ReasonExhausted, &ExhaustedError{
		Path:     req.Path,
		Attempts: len(f.delays),
		LastErr:  lastErr,
	}), nil
}

type attemptResult struct {
	outcome string
	status  int
	header  http.Header
	body    []byte
	err     error
}

// attempt makes one bounded call. The response body is read inside the
// attempt deadline so a stalled body counts as a timeout.
func (f *Fetcher) attempt(ctx context.Context, req Request, n int) attemptResult {
	ctx, span := f.tracer.Start(ctx, "upstream.attempt")
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	res := f.do(attemptCtx, req)
	if res.err != nil {
		if isTimeout(attemptCtx, res.err) {
			res.outcome = OutcomeTimeout
		} else {
			res.outcome = OutcomeNetworkError
		}
		tracing.SetError(span, res.err)
	} else if _, ok := f.retryable[res.status]; ok {
		res.outcome = OutcomeRetryableStatus
	} else {
		res.outcome = OutcomeAccepted
	}

	f.recorder.RecordAttempt(res.outcome, time.Since(start))
	tracing.SetAttemptAttributes(span, n, res.outcome, res.status)

	return res
}

func (f *Fetcher) do(ctx context.Context, req Request) attemptResult {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, f.URL(req.Path), body)
	if err != nil {
		return attemptResult{err: fmt.Errorf("failed to create request: %w", err)}
	}
	f.setHeaders(httpReq, req)
	tracing.Inject(ctx, httpReq.Header)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return attemptResult{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{status: resp.StatusCode, err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return attemptResult{status: resp.StatusCode, header: resp.Header, body: data}
}

func (f *Fetcher) setHeaders(httpReq *http.Request, req Request) {
	for key, values := range req.Header {
		httpReq.Header[key] = slices.Clone(values)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)

	if f.authHeader != "" {
		httpReq.Header.Set("Authorization", f.authHeader)
	} else {
		httpReq.Header.Del("Authorization")
	}

	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Only GET responses may be served from a cache between us and the origin.
	if req.Method != http.MethodGet {
		httpReq.Header.Set("Cache-Control", "no-store")
	}
}

func (f *Fetcher) fallback(ctx context.Context, req Request, attempts int, reason string, cause error) *Response {
	f.health.RecordFallback(reason, cause)
	f.recorder.RecordFallback(reason)

	span := tracing.SpanFromContext(ctx)
	tracing.SetFallbackAttributes(span, reason)
	tracing.SetError(span, cause)

	f.logger.Warn("serving fallback",
		"path", req.Path,
		"method", req.Method,
		"reason", reason,
		"attempts", attempts,
		"error", cause,
	)

	return &Response{
		Header:         http.Header{},
		Body:           FallbackBody(),
		Fallback:       true,
		FallbackReason: reason,
		Cause:          cause,
		Attempts:       attempts,
	}
}

// isTimeout classifies an attempt error. The attempt deadline, a transport
// level timeout and cancellation of the inbound request all end the
// schedule.
func isTimeout(attemptCtx context.Context, err error) bool {
	if attemptCtx.Err() != nil {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
