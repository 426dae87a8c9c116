// Package server owns the HTTP surface: it authenticates inbound
// connections, binds streaming channels to sessions, and routes follow-up
// messages to the right session.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagegate/pagegate/pkg/directory"
	"github.com/pagegate/pagegate/pkg/logging"
	"github.com/pagegate/pagegate/pkg/mcp"
	"github.com/pagegate/pagegate/pkg/session"
)

// Config controls the gateway server behavior.
type Config struct {
	BindAddress       string
	AllowedOrigins    []string
	PublicMetrics     bool
	Version           string
	MessagesPerSecond float64
	MessageBurst      int
}

// Server hosts the MCP endpoints plus health and metrics.
type Server struct {
	cfg        Config
	directory  *directory.Store
	registry   *session.Registry
	handler    *mcp.Handler
	logger     *logging.Logger
	limiter    *credLimiter
	httpServer *http.Server
}

// New constructs a server over the given collaborators.
func New(cfg Config, dir *directory.Store, registry *session.Registry, handler *mcp.Handler, logger *logging.Logger) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = ":3000"
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 10
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 20
	}

	return &Server{
		cfg:       cfg,
		directory: dir,
		registry:  registry,
		handler:   handler,
		logger:    logger,
		limiter:   newCredLimiter(cfg.MessagesPerSecond, cfg.MessageBurst),
	}
}

// Router builds the HTTP route tree. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(securityHeaders)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/mcp/sse", s.handleSSE)
	r.Post("/mcp/messages", s.handleMessages)
	r.Get("/mcp/ws", s.handleWebSocket)

	return r
}

// Start serves until the context is cancelled, then drains connections and
// tears down every live session.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	s.logger.Info(logging.CategoryServer, "listening", "server started", map[string]any{"addr": s.cfg.BindAddress})

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Tear down sessions first so their streaming handlers return and the
	// drain below does not wait on long-lived connections.
	s.registry.DestroyAll()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.logger.Info(logging.CategoryServer, "stopped", "server shut down", nil)
	return err
}
