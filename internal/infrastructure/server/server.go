// Package server wires the terminal engine, executor, and API surface into
// one HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shellpane/shellpane/internal/ansi"
	apihttp "github.com/shellpane/shellpane/internal/api/http"
	"github.com/shellpane/shellpane/internal/api/middleware"
	"github.com/shellpane/shellpane/internal/api/ws"
	"github.com/shellpane/shellpane/internal/dispatch"
	"github.com/shellpane/shellpane/internal/infrastructure/config"
	"github.com/shellpane/shellpane/internal/infrastructure/logging"
	"github.com/shellpane/shellpane/internal/infrastructure/monitoring"
	"github.com/shellpane/shellpane/internal/registry"
	"github.com/shellpane/shellpane/internal/shell"
	"github.com/shellpane/shellpane/internal/term"
)

// Server hosts the HTTP and WebSocket API.
type Server struct {
	httpServer *http.Server
	registry   *registry.Manager
	logger     *logging.Logger
	config     *config.Config
}

// NewServer builds a fully-wired server from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromConfig(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})

	logger.Info("initializing shellpane server",
		zap.String("port", cfg.Server.Port),
		zap.String("shell", cfg.Terminal.Shell),
		zap.Int("max_lines", cfg.Terminal.MaxLines),
	)

	palette, err := ansi.LoadPalette(cfg.Terminal.PalettePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette: %w", err)
	}
	parser := ansi.NewParser(palette)

	promRegistry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promRegistry)

	sessions := registry.NewManager(registry.Config{
		DefaultWorkingDir: cfg.Terminal.WorkingDir,
		Limits: term.Limits{
			MaxLines:   cfg.Terminal.MaxLines,
			MaxHistory: cfg.Terminal.MaxHistory,
		},
	})
	metrics.SessionsActive.Set(float64(sessions.Count()))
	metrics.SessionsTotal.Inc()

	runner := shell.NewRunner(sessions, cfg.Terminal.Shell, logger.Logger)
	dispatcher := dispatch.NewDispatcher(sessions, runner,
		dispatch.WithLogger(logger.Logger),
		dispatch.WithMetrics(metrics),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(sessions, dispatcher, parser, metrics, logger.Logger)
	wsHandler := ws.NewHandler(sessions, dispatcher, parser, metrics, logger.Logger, ws.Limits{
		EventsPerSecond: cfg.Stream.EventsPerSecond,
		Burst:           cfg.Stream.Burst,
	})

	router.GET("/health", handlers.Health)

	router.GET("/sessions", handlers.ListSessions)
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)
	router.POST("/sessions/:id/select", handlers.SelectSession)
	router.GET("/sessions/:id/lines", handlers.GetLines)
	router.GET("/sessions/:id/search", handlers.Search)
	router.POST("/sessions/:id/input", handlers.SubmitInput)
	router.GET("/sessions/:id/export", handlers.Export)

	router.GET("/sessions/:id/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		registry:   sessions,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Run starts serving and blocks until Close or failure.
func (s *Server) Run() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts the server down.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("shutting down server")
	defer s.logger.Sync()
	return s.httpServer.Shutdown(ctx)
}
