// Package http provides the HTTP API for craftd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/config"
	"github.com/fyrsmithlabs/craftd/internal/orchestrator"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

// Server exposes the pipeline over HTTP.
type Server struct {
	echo   *echo.Echo
	orch   *orchestrator.Orchestrator
	store  store.Store
	nc     *nats.Conn
	cfg    config.ServerConfig
	logger *zap.Logger
}

// NewServer creates the HTTP server. The NATS connection is optional;
// without it the SSE endpoint reports the stream as unavailable.
func NewServer(orch *orchestrator.Orchestrator, st store.Store, nc *nats.Conn, cfg config.ServerConfig, logger *zap.Logger) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		orch:   orch,
		store:  st,
		nc:     nc,
		cfg:    cfg,
		logger: logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/config", s.handleConfig)

	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects", s.handleListProjects)
	api.GET("/projects/:id", s.handleGetProject)

	api.GET("/projects/:id/files", s.handleListFiles)
	api.GET("/projects/:id/files/*", s.handleGetFile)
	api.POST("/projects/:id/files", s.handleWriteFile)

	api.POST("/projects/:id/analyze", s.handleAnalyze)
	api.POST("/projects/:id/dojo/challenge", s.handleStartChallenge)
	api.POST("/projects/:id/dojo/verify", s.handleVerifyChallenge)

	api.GET("/projects/:id/events", s.handleEvents)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler exposes the routing tree, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
