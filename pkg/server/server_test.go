package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pawpantry/larder/pkg/cache"
	"pawpantry/larder/pkg/client"
	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/proxy/handlers"
	"pawpantry/larder/pkg/telemetry/health"
	"pawpantry/larder/pkg/telemetry/metrics"
	"pawpantry/larder/pkg/upstream"
)

type testEnv struct {
	handler http.Handler
	calls   *atomic.Int32
	status  *atomic.Int32
	fetcher *upstream.Fetcher
}

// newTestEnv builds the full route table against a fake WordPress origin
// whose status can be changed per test.
func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	var calls, status atomic.Int32
	status.Store(http.StatusOK)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(`{"id":1,"title":{"rendered":"Chicken Stew"}}`))
	}))
	t.Cleanup(origin.Close)

	cfg := config.Default()
	cfg.Upstream.BaseURL = origin.URL
	cfg.Upstream.RetryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	cfg.Revalidate.Secret = secret
	cfg.Telemetry.Metrics.Namespace = "test"

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	fetcher, err := upstream.New(cfg.Upstream, upstream.WithRecorder(collector))
	if err != nil {
		t.Fatalf("upstream.New() error = %v", err)
	}

	checker := health.New(time.Second)
	checker.RegisterCheck("upstream", fetcher.Health().Check)

	store := cache.NewMemoryStore(0)
	deps := Dependencies{
		Fetcher:      fetcher,
		Invalidators: map[string]handlers.Invalidator{"data": store},
		Health:       checker,
		Metrics:      collector,
		Version:      health.VersionInfo{Version: "1.2.3"},
	}
	srv := NewServer(cfg, deps)

	return &testEnv{handler: srv.Handler(), calls: &calls, status: &status, fetcher: fetcher}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestServer_ProxyScenarios(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		env := newTestEnv(t, "")
		w := env.do(http.MethodGet, "/api/wp?path=/wp/v2/recipe?slug=abc")

		if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), `{"id":1`) {
			t.Errorf("expected upstream body, got %d %s", w.Code, w.Body.String())
		}
		if env.calls.Load() != 1 {
			t.Errorf("expected 1 upstream call, got %d", env.calls.Load())
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("expected request ID header")
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		env := newTestEnv(t, "")
		env.status.Store(http.StatusServiceUnavailable)
		w := env.do(http.MethodGet, "/api/wp?path=/wp/v2/posts")

		if w.Code != http.StatusOK || w.Body.String() != `{"items":[],"error":"fallback"}` {
			t.Errorf("expected fallback, got %d %s", w.Code, w.Body.String())
		}
		if w.Header().Get("X-Fallback") != "1" {
			t.Error("expected X-Fallback: 1")
		}
		if env.calls.Load() != 4 {
			t.Errorf("expected 4 upstream calls, got %d", env.calls.Load())
		}
	})

	t.Run("missing path", func(t *testing.T) {
		env := newTestEnv(t, "")
		w := env.do(http.MethodGet, "/api/wp")

		if w.Code != http.StatusBadRequest || strings.TrimSpace(w.Body.String()) != `{"error":"missing path"}` {
			t.Errorf("expected 400 missing path, got %d %s", w.Code, w.Body.String())
		}
		if env.calls.Load() != 0 {
			t.Error("expected no upstream call")
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		env := newTestEnv(t, "")
		if w := env.do(http.MethodPost, "/api/wp?path=/wp/v2/posts"); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}

func TestServer_ReadinessDegraded(t *testing.T) {
	env := newTestEnv(t, "")
	env.status.Store(http.StatusBadGateway)

	for i := 0; i < upstream.DefaultUnhealthyAfter; i++ {
		env.do(http.MethodGet, "/api/wp?path=/wp/v2/posts")
	}

	w := env.do(http.MethodGet, "/ready")
	if w.Code != http.StatusOK {
		t.Errorf("expected readiness to stay 200, got %d", w.Code)
	}

	var status health.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if status.Status != health.StatusDegraded {
		t.Errorf("expected degraded, got %s", status.Status)
	}

	env.status.Store(http.StatusOK)
	env.do(http.MethodGet, "/api/wp?path=/wp/v2/posts")

	w = env.do(http.MethodGet, "/ready")
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.Status != health.StatusReady {
		t.Errorf("expected ready after recovery, got %s", status.Status)
	}
}

func TestServer_OperationalRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(http.MethodGet, "/api/wp?path=/wp/v2/posts")

	if w := env.do(http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("expected /health 200, got %d", w.Code)
	}

	w := env.do(http.MethodGet, "/version")
	var info health.VersionInfo
	_ = json.Unmarshal(w.Body.Bytes(), &info)
	if info.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", info.Version)
	}

	w = env.do(http.MethodGet, "/metrics")
	body := w.Body.String()
	for _, want := range []string{
		`test_upstream_attempts_total{outcome="accepted"} 1`,
		`test_http_requests_total{method="GET",route="GET /api/wp",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %s", want)
		}
	}

	if w := env.do(http.MethodPost, "/api/revalidate"); w.Code != http.StatusNotFound {
		t.Errorf("expected revalidation disabled without secret, got %d", w.Code)
	}
}

func TestServer_Revalidate(t *testing.T) {
	env := newTestEnv(t, "hook-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/revalidate?tag=wp", nil)
	req.Header.Set(handlers.HeaderRevalidateSecret, "hook-secret")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d %s", w.Code, w.Body.String())
	}
}

func TestServer_Catalogue(t *testing.T) {
	env := newTestEnv(t, "")

	// The catalogue calls the proxy endpoint over HTTP, so serve it for real.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	proxySrv := &http.Server{Handler: env.handler}
	go proxySrv.Serve(ln)
	defer proxySrv.Close()

	c, _ := client.New(config.ClientConfig{ProxyURL: "http://" + ln.Addr().String()})
	cfg := config.Default()
	srv := NewServer(cfg, Dependencies{Fetcher: env.fetcher, Content: content.NewService(c, 0)})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recipes", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	// The origin answers with an object, not a list, so decoding fails.
	if w.Header().Get("X-Fallback") != "1" {
		t.Errorf("expected degraded listing for a non-list body, got %s", w.Body.String())
	}
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Upstream.BaseURL = "http://127.0.0.1:1"
	fetcher, _ := upstream.New(cfg.Upstream)
	srv := NewServer(cfg, Dependencies{Fetcher: fetcher})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	deadline := time.Now().Add(time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if srv.IsRunning() {
		t.Error("expected server to be stopped")
	}
}
