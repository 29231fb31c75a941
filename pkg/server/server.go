package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"pawpantry/larder/pkg/config"
	"pawpantry/larder/pkg/content"
	"pawpantry/larder/pkg/proxy/handlers"
	"pawpantry/larder/pkg/proxy/middleware"
	"pawpantry/larder/pkg/telemetry/health"
	"pawpantry/larder/pkg/telemetry/metrics"
	"pawpantry/larder/pkg/telemetry/tracing"
)

// Dependencies are the components the routes are served from.
type Dependencies struct {
	// Fetcher backs the /api/wp proxy endpoint.
	Fetcher handlers.Fetcher

	// Content backs the catalogue routes. Nil disables them.
	Content *content.Service

	// Invalidators are the caches cleared by /api/revalidate, by name.
	Invalidators map[string]handlers.Invalidator

	// Health serves /health and /ready.
	Health *health.Checker

	// Metrics serves /metrics and records request metrics. Nil disables both.
	Metrics *metrics.Collector

	// Tracer starts server spans. Nil disables tracing.
	Tracer *tracing.Tracer

	Version health.VersionInfo
}

// Server is the HTTP server for the proxy endpoint and catalogue.
type Server struct {
	config           *config.ServerConfig
	metricsPath      string
	revalidateSecret string
	deps             Dependencies

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new server.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	metricsPath := cfg.Telemetry.Metrics.Path
	if metricsPath == "" {
		metricsPath = config.DefaultMetricsPath
	}

	return &Server{
		config:           &cfg.Server,
		metricsPath:      metricsPath,
		revalidateSecret: cfg.Revalidate.Secret,
		deps:             deps,
	}
}

// Start listens on the configured address and serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", ln.Addr().String())

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running, srv := s.isRunning, s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("server stopped")
	})

	return shutdownErr
}

// Addr returns the address the server is listening on, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/wp", handlers.NewWPHandler(s.deps.Fetcher))

	if s.deps.Content != nil {
		ch := handlers.NewContentHandler(s.deps.Content)
		mux.HandleFunc("GET /api/recipes", ch.Recipes)
		mux.HandleFunc("GET /api/recipes/{slug}", ch.Recipe)
		mux.HandleFunc("GET /api/articles", ch.Articles)
		mux.HandleFunc("GET /api/faqs", ch.FAQs)
	}

	mux.Handle("POST /api/revalidate", handlers.NewRevalidateHandler(s.revalidateSecret, s.deps.Invalidators))

	mux.Handle("/health", s.deps.Health.LivenessHandler())
	mux.Handle("/ready", s.deps.Health.ReadinessHandler())
	v := s.deps.Version
	mux.Handle("/version", health.VersionHandler(v.Version, v.Commit, v.BuildTime))

	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.metricsPath, s.deps.Metrics.Handler())
	}

	var handler http.Handler = mux

	if s.deps.Metrics != nil {
		handler = middleware.MetricsMiddleware(s.deps.Metrics)(handler)
	}

	handler = middleware.CORSMiddleware(s.config.CORS)(handler)

	if s.deps.Tracer != nil {
		handler = tracing.HTTPMiddleware(s.deps.Tracer)(handler)
	}

	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
