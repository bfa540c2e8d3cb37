package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kiiskristo/howdoyoufindme/internal/analysis"
	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/llm/configbuilder"
	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/rpc/searchrank"
	"github.com/kiiskristo/howdoyoufindme/internal/stream"
)

// Server hosts the search-rank stream over SSE and Connect plus health and metrics.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	runner  searchrank.Runner
	metrics *observability.Metrics
}

// NewServer constructs a daemon instance backed by the analysis pipeline.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}

	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	logger = logging.OrNop(logger)
	metrics := observability.NewMetrics()
	pipeline := analysis.New(registry, cfg.Analysis, metrics, logger.Named("analysis"))

	return newServer(cfg, logger, pipeline, metrics), nil
}

func newServer(cfg *config.Config, logger *zap.Logger, runner searchrank.Runner, metrics *observability.Metrics) *Server {
	return &Server{cfg: cfg, logger: logging.OrNop(logger), runner: runner, metrics: metrics}
}

// Handler returns the daemon's routes wrapped for HTTP/2 cleartext.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.Handle(stream.SearchPath, searchrank.NewHandler(s.runner, s.metrics))

	path, handler := searchrank.NewConnectHandler(s.runner, s.metrics)
	mux.Handle(path, handler)

	return h2c.NewHandler(withCORS(mux, s.cfg.Server.AllowedOrigins), &http2.Server{})
}

// withCORS lets the listed browser origins read the event stream. "*" allows any origin.
func withCORS(next http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return next
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting searchrank daemon", zap.String("addr", s.cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down searchrank daemon")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.MetricsEnabled {
		http.NotFound(w, r)
		return
	}

	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
