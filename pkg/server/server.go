// Package server assembles the gateway's single HTTP listener: the Proxy
// Engine, the Admin HTTP Surface, and the operational endpoints (/health,
// /ready, /metrics) behind one middleware chain, grounded on the teacher's
// pkg/server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/raikyou/uniapi/pkg/admin"
	"github.com/raikyou/uniapi/pkg/proxy"
	"github.com/raikyou/uniapi/pkg/proxy/middleware"
	"github.com/raikyou/uniapi/pkg/security/tls"
	"github.com/raikyou/uniapi/pkg/telemetry/health"
	"github.com/raikyou/uniapi/pkg/telemetry/metrics"
)

// Config controls the listener and graceful-shutdown behavior. Unlike the
// gateway's declarative document (pkg/config), this is assembled by the CLI
// from flags and is not hot-reloaded.
type Config struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORS            middleware.CORSConfig
}

// DefaultConfig returns the server's default listener tuning.
func DefaultConfig() Config {
	return Config{
		ListenAddress:   "0.0.0.0:8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // the proxy engine streams; let it run to completion
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		CORS:            middleware.DefaultCORSConfig(),
	}
}

// Server is the gateway's HTTP listener.
type Server struct {
	cfg        Config
	httpServer *http.Server
	tls        bool
	logger     *slog.Logger
}

// New assembles the full route table and middleware chain: the Proxy
// Engine answers everything not claimed by the admin/health/metrics
// surfaces. reloader is nil unless TLS is enabled.
func New(cfg Config, engine *proxy.Engine, adminHandler *admin.Handler, checker *health.Checker, collector *metrics.Collector, reloader *tls.Reloader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	adminHandler.Register(mux)
	mux.Handle("GET /health", checker.LivenessHandler())
	mux.Handle("GET /ready", checker.ReadinessHandler())
	mux.Handle("GET /metrics", collector.Handler())
	mux.Handle("/", engine)

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if reloader != nil {
		httpServer.TLSConfig = tls.ToTLSConfig(reloader)
	}

	return &Server{
		cfg:        cfg,
		httpServer: httpServer,
		tls:        reloader != nil,
		logger:     logger,
	}
}

// Handler returns the fully assembled handler (middleware chain plus every
// registered route), for tests that want to drive it with httptest without
// binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP (or HTTPS, if TLS was configured) until the
// listener fails or Shutdown is called, in which case it returns nil.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "address", s.cfg.ListenAddress, "tls", s.tls)

	var err error
	if s.tls {
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
