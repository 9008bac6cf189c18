package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/dashworker/internal/api/http"
	"github.com/GriffinCanCode/dashworker/internal/api/middleware"
	"github.com/GriffinCanCode/dashworker/internal/api/ws"
	"github.com/GriffinCanCode/dashworker/internal/bootstrap"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/config"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dashworker/internal/manifest"
	"github.com/GriffinCanCode/dashworker/internal/packages"
	"github.com/GriffinCanCode/dashworker/internal/protocol"
	"github.com/GriffinCanCode/dashworker/internal/sandbox"
)

const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	ws      *ws.Handler
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing worker server",
		zap.String("addr", cfg.Addr()),
		zap.Duration("runtime_timeout", cfg.Runtime.Timeout),
	)

	m, err := manifest.Load(cfg.Packages.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to load package manifest: %w", err)
	}
	script, err := manifest.MainScript(cfg.Runtime.MainScript)
	if err != nil {
		return nil, fmt.Errorf("failed to load main script: %w", err)
	}
	logger.Info("Loaded startup manifest", zap.Strings("packages", m.Packages))

	metrics := monitoring.NewMetrics()

	// Downloads and the wheelhouse are shared; each session installs into
	// its own manager.
	fetcher := packages.NewFetcher(packages.FetchConfig{
		Timeout:    cfg.Fetch.Timeout,
		MaxRetries: cfg.Fetch.MaxRetries,
		RPS:        cfg.Fetch.RPS,
	})
	var wheelhouse *packages.Wheelhouse
	if cfg.Packages.Wheelhouse != "" {
		wheelhouse = packages.NewWheelhouse(cfg.Packages.Wheelhouse)
		logger.Info("Using wheelhouse", zap.String("dir", cfg.Packages.Wheelhouse))
	}

	runtimeConfig := sandbox.DefaultConfig()
	runtimeConfig.Timeout = cfg.Runtime.Timeout
	runtimeConfig.DataDir = cfg.Runtime.DataDir
	runtimeConfig.Data = manifest.Data()

	newWorker := func(poster protocol.Poster, sessionLogger *logging.Logger) *bootstrap.Worker {
		return bootstrap.New(bootstrap.Config{
			Runtime:    runtimeConfig,
			Packages:   m.Packages,
			MainScript: script,
			Manager:    packages.NewManager(fetcher, wheelhouse, sessionLogger),
		}, poster, sessionLogger, metrics)
	}
	wsHandler := ws.NewHandler(newWorker, logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	h := handlers.NewHandlers(wsHandler, m, packages.NewManager(nil, nil, nil).Builtin())

	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/manifest", h.Manifest)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/worker", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		ws:      wsHandler,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until Close is called.
func (s *Server) Run() error {
	addr := s.config.Addr()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...",
		zap.Int64("sessions", s.ws.Sessions()),
	)

	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
	}

	_ = s.logger.Sync()
	return nil
}
