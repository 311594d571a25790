package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/entitypipe/config"
	"github.com/kbukum/entitypipe/httpapi/middleware"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/observability"
)

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth sets the function /health reports. Without it /health
// reports the engine alone.
func WithHealth(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// Server serves the pipeline API over HTTP/1.1 and cleartext HTTP/2.
type Server struct {
	cfg     config.HTTPConfig
	service string
	engine  Engine
	health  HealthChecker
	metrics *observability.Metrics
	log     *logger.Logger

	router  *gin.Engine
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// New builds the router and middleware stack. Nothing listens until
// Start.
func New(cfg config.HTTPConfig, service string, engine Engine, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		service: service,
		engine:  engine,
		log:     log.WithComponent("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = engineHealth(engine)
	}

	s.router = gin.New()
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.routes()

	chain := middleware.Chain(
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.RequestLogger(s.log),
		middleware.BodySizeLimit(cfg.MaxBodyBytes),
	)
	s.handler = h2c.NewHandler(chain(s.router), &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	})
	return s
}

// Handler returns the full handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return fmt.Errorf("http server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http server failed to bind %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.httpServer = srv
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", logger.ErrorFields("serve", err))
		}
	}()
	s.log.Info("http server started", logger.Fields("addr", s.addr))
	return nil
}

// Stop shuts the server down, waiting at most the configured shutdown
// timeout for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.addr = ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
