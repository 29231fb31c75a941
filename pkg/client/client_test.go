package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/upstream"
)

type recipe struct {
	ID   int    `json:"id"`
	Slug string `json:"slug"`
}

// proxyStub answers like the proxy endpoint. body and fallback may be
// changed between calls.
type proxyStub struct {
	mu       sync.Mutex
	calls    atomic.Int32
	status   int
	body     string
	fallback bool
	lastPath string
}

func (p *proxyStub) set(body string, fallback bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body, p.fallback = body, fallback
}

func (p *proxyStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastPath = r.URL.Query().Get("path")
	w.Header().Set("Content-Type", "application/json")
	if p.fallback {
		w.Header().Set(upstream.HeaderFallback, "1")
	}
	if p.status != 0 {
		w.WriteHeader(p.status)
	}
	w.Write([]byte(p.body))
}

func newTestClient(t *testing.T, stub *proxyStub, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	c, err := New(config.ClientConfig{ProxyURL: server.URL}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestFetch_PassesBodyThrough(t *testing.T) {
	stub := &proxyStub{body: `{"id":1,"title":{"rendered":"Salmon Bites"}}`}
	c := newTestClient(t, stub)

	res, err := Fetch[json.RawMessage](context.Background(), c, "/wp/v2/recipe?slug=abc", nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if string(res.Data) != stub.body {
		t.Errorf("expected body unchanged, got %s", res.Data)
	}
	if res.Fallback || res.Stale {
		t.Error("expected a live result")
	}
	if stub.lastPath != "/wp/v2/recipe?slug=abc" {
		t.Errorf("expected logical path to survive encoding, got %q", stub.lastPath)
	}
}

func TestFetchList_Fallback(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		header   bool
		fallback bool
	}{
		{"header and envelope", `{"items":[],"error":"fallback"}`, true, true},
		{"envelope without header", `{"items":[],"error":"fallback"}`, false, true},
		{"header only", `{}`, true, true},
		{"envelope with extra keys", `{"items":[],"error":"fallback","page":1}`, false, false},
		{"regular list", `[{"id":7,"slug":"tuna"}]`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &proxyStub{body: tt.body, fallback: tt.header}
			c := newTestClient(t, stub)

			if !tt.fallback && tt.body[0] == '{' {
				res, err := Fetch[map[string]any](context.Background(), c, "/wp/v2/recipe", nil)
				if err != nil {
					t.Fatalf("Fetch() error = %v", err)
				}
				if res.Fallback {
					t.Error("expected non-sentinel object to pass through")
				}
				return
			}

			res, err := FetchList[recipe](context.Background(), c, "/wp/v2/recipe", nil)
			if err != nil {
				t.Fatalf("FetchList() error = %v", err)
			}
			if res.Fallback != tt.fallback {
				t.Errorf("expected fallback %v, got %v", tt.fallback, res.Fallback)
			}
			if res.Data == nil {
				t.Error("expected non-nil slice")
			}
			if tt.fallback && len(res.Data) != 0 {
				t.Errorf("expected empty slice on fallback, got %v", res.Data)
			}
		})
	}
}

func TestFetch_ProxyError(t *testing.T) {
	stub := &proxyStub{status: http.StatusBadRequest, body: `{"error":"missing path"}`}
	c := newTestClient(t, stub)

	_, err := Fetch[json.RawMessage](context.Background(), c, "/wp/v2/posts", nil)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", fetchErr.StatusCode)
	}
	if stub.calls.Load() != 1 {
		t.Errorf("expected no retries, got %d calls", stub.calls.Load())
	}
}

func TestFetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, _ := New(config.ClientConfig{ProxyURL: url})
	_, err := Fetch[json.RawMessage](context.Background(), c, "/wp/v2/posts", nil)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 0 {
		t.Errorf("expected FetchError without status, got %v", err)
	}
}

func TestFetch_DecodeError(t *testing.T) {
	stub := &proxyStub{body: `{"id":"not a number"}`}
	c := newTestClient(t, stub)

	_, err := Fetch[recipe](context.Background(), c, "/wp/v2/recipe/1", nil)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected DecodeError, got %v", err)
	}
}

func TestFetch_MissingPath(t *testing.T) {
	stub := &proxyStub{body: `[]`}
	c := newTestClient(t, stub)

	_, err := Fetch[json.RawMessage](context.Background(), c, "", nil)
	if !errors.Is(err, upstream.ErrMissingPath) {
		t.Errorf("expected ErrMissingPath, got %v", err)
	}
	if stub.calls.Load() != 0 {
		t.Error("expected no call for an empty path")
	}
}

type cacheRecorder struct {
	hits, misses, evictions atomic.Int32
}

func (r *cacheRecorder) RecordCacheHit(string)               { r.hits.Add(1) }
func (r *cacheRecorder) RecordCacheMiss(string)              { r.misses.Add(1) }
func (r *cacheRecorder) RecordCacheEviction(_ string, n int) { r.evictions.Add(int32(n)) }
func (r *cacheRecorder) UpdateCacheSize(string, int)         {}

func TestFetch_Cache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	stub := &proxyStub{body: `[{"id":1,"slug":"salmon"}]`}
	rec := &cacheRecorder{}
	store := cache.NewMemoryStore(0)
	c := newTestClient(t, stub, WithStore(store), WithRecorder(rec))
	c.now = func() time.Time { return now }

	get := func() Result[[]recipe] {
		t.Helper()
		res, err := FetchList[recipe](ctx, c, "/wp/v2/recipe", nil)
		if err != nil {
			t.Fatalf("FetchList() error = %v", err)
		}
		return res
	}

	get()
	res := get()
	if stub.calls.Load() != 1 {
		t.Errorf("expected fresh entry to be served without a call, got %d calls", stub.calls.Load())
	}
	if len(res.Data) != 1 || res.Data[0].Slug != "salmon" {
		t.Errorf("unexpected cached data %v", res.Data)
	}
	if rec.hits.Load() != 1 || rec.misses.Load() != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d and %d", rec.hits.Load(), rec.misses.Load())
	}

	t.Run("stale served on fallback", func(t *testing.T) {
		now = now.Add(config.DefaultRevalidate + time.Second)
		stub.set(`{"items":[],"error":"fallback"}`, true)

		res := get()
		if !res.Stale || res.Fallback {
			t.Errorf("expected stale result, got stale=%v fallback=%v", res.Stale, res.Fallback)
		}
		if len(res.Data) != 1 {
			t.Errorf("expected stale data, got %v", res.Data)
		}

		entry, _ := store.Get(ctx, "/wp/v2/recipe")
		if string(entry.Body) != `[{"id":1,"slug":"salmon"}]` {
			t.Error("expected fallback body not to overwrite the cache")
		}
	})

	t.Run("refreshed on recovery", func(t *testing.T) {
		stub.set(`[{"id":2,"slug":"tuna"}]`, false)

		res := get()
		if res.Stale || len(res.Data) != 1 || res.Data[0].Slug != "tuna" {
			t.Errorf("expected refreshed data, got %+v", res)
		}

		before := stub.calls.Load()
		get()
		if stub.calls.Load() != before {
			t.Error("expected refreshed entry to be fresh")
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		n, err := c.InvalidateTag(ctx, "wp")
		if err != nil || n != 1 {
			t.Fatalf("InvalidateTag() = %d, %v", n, err)
		}

		before := stub.calls.Load()
		get()
		if stub.calls.Load() != before+1 {
			t.Error("expected invalidated entry to be refetched")
		}
	})
}

func TestFetch_FallbackNotCached(t *testing.T) {
	stub := &proxyStub{body: `{"items":[],"error":"fallback"}`, fallback: true}
	store := cache.NewMemoryStore(0)
	c := newTestClient(t, stub, WithStore(store))

	for i := 0; i < 2; i++ {
		res, _ := FetchList[recipe](context.Background(), c, "/wp/v2/faq", nil)
		if !res.Fallback {
			t.Error("expected fallback without a cached entry")
		}
	}

	if n, _ := store.Len(context.Background()); n != 0 {
		t.Errorf("expected empty cache, got %d entries", n)
	}
	if stub.calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", stub.calls.Load())
	}
}

func TestFetch_CacheBypass(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
	}{
		{"no-cache", &Options{NoCache: true}},
		{"post", &Options{Method: http.MethodPost, Body: []byte(`{"q":1}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &proxyStub{body: `[]`}
			store := cache.NewMemoryStore(0)
			c := newTestClient(t, stub, WithStore(store))

			for i := 0; i < 2; i++ {
				if _, err := FetchList[recipe](context.Background(), c, "/wp/v2/posts", tt.opts); err != nil {
					t.Fatalf("FetchList() error = %v", err)
				}
			}

			if stub.calls.Load() != 2 {
				t.Errorf("expected every call to reach the proxy, got %d", stub.calls.Load())
			}
			if n, _ := store.Len(context.Background()); n != 0 {
				t.Errorf("expected nothing cached, got %d", n)
			}
		})
	}
}

func TestFetch_CustomTags(t *testing.T) {
	stub := &proxyStub{body: `[]`}
	store := cache.NewMemoryStore(0)
	c := newTestClient(t, stub, WithStore(store))

	_, _ = FetchList[recipe](context.Background(), c, "/wp/v2/recipe", &Options{Tags: []string{"recipes"}})

	entry, err := store.Get(context.Background(), "/wp/v2/recipe")
	if err != nil {
		t.Fatalf("expected entry, got %v", err)
	}
	if !entry.HasTag("recipes") || entry.HasTag("wp") {
		t.Errorf("expected only the custom tag, got %v", entry.Tags)
	}
}

func TestFetch_CoalescesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	c, _ := New(config.ClientConfig{ProxyURL: server.URL}, WithStore(cache.NewMemoryStore(0)))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := FetchList[recipe](context.Background(), c, "/wp/v2/recipe", nil)
			if err != nil || len(res.Data) != 1 {
				t.Errorf("unexpected result %v, %v", res, err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected concurrent fetches to share one call, got %d", calls.Load())
	}
}

func TestFetch_CanceledCallerDoesNotFailSharedCall(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case arrived <- struct{}{}:
		default:
		}
		<-release
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	c, _ := New(config.ClientConfig{ProxyURL: server.URL}, WithStore(cache.NewMemoryStore(0)))

	ctx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := FetchList[recipe](ctx, c, "/wp/v2/recipe", nil)
		leaderErr <- err
	}()
	<-arrived

	type outcome struct {
		res Result[[]recipe]
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := FetchList[recipe](context.Background(), c, "/wp/v2/recipe", nil)
		follower <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected canceled caller to get context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller kept waiting on the shared call")
	}

	close(release)
	got := <-follower
	if got.err != nil {
		t.Fatalf("expected follower to succeed, got %v", got.err)
	}
	if got.res.Fallback || len(got.res.Data) != 1 {
		t.Errorf("expected one item without fallback, got %+v", got.res)
	}
	if calls.Load() != 1 {
		t.Errorf("expected one shared call, got %d", calls.Load())
	}

	if _, err := c.Store().Get(context.Background(), "/wp/v2/recipe"); err != nil {
		t.Errorf("expected shared result to be cached, got %v", err)
	}
}

func TestFlightKey(t *testing.T) {
	base := flightKey("/wp/v2/recipe", &Options{Tags: []string{"wp"}, Revalidate: time.Minute})

	tests := []struct {
		name string
		opts *Options
		same bool
	}{
		{"identical options", &Options{Tags: []string{"wp"}, Revalidate: time.Minute}, true},
		{"different tags", &Options{Tags: []string{"recipes"}, Revalidate: time.Minute}, false},
		{"different revalidate", &Options{Tags: []string{"wp"}, Revalidate: time.Hour}, false},
		{"extra header", &Options{Tags: []string{"wp"}, Revalidate: time.Minute, Header: http.Header{"X-Preview": {"1"}}}, false},
		{"default options", &Options{}, false},
	}

	if flightKey("/wp/v2/recipe", nil) != flightKey("/wp/v2/recipe", &Options{}) {
		t.Error("expected nil and zero options to share a key")
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flightKey("/wp/v2/recipe", tt.opts) == base
			if got != tt.same {
				t.Errorf("expected shared key = %v, got %v", tt.same, got)
			}
		})
	}
}

func TestFetch_DifferentTagsAreNotShared(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	c, _ := New(config.ClientConfig{ProxyURL: server.URL}, WithStore(cache.NewMemoryStore(0)))

	var wg sync.WaitGroup
	for _, tag := range []string{"recipes", "catalogue"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := FetchList[recipe](context.Background(), c, "/wp/v2/recipe", &Options{Tags: []string{tag}}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 2 {
		t.Errorf("expected a call per tag set, got %d", calls.Load())
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.ClientConfig{}); err == nil {
		t.Error("expected error without proxy URL")
	}

	c, err := New(config.ClientConfig{ProxyURL: "http://127.0.0.1:8080/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := "http://127.0.0.1:8080/api/wp?path=%2Fwp%2Fv2%2Frecipe%3Fslug%3Dabc"
	if got := c.URL("/wp/v2/recipe?slug=abc"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
