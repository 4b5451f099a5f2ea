// Package http serves the duplicate detector over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vectorstore"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Detector is the subset of *detector.Detector the server needs.
type Detector interface {
	Check(ctx context.Context, req detector.Request) (*detector.Report, error)
	InitIndex(ctx context.Context, force bool) error
	Index() vectorstore.IndexDescriptor
}

// Server provides HTTP endpoints for ticketdup.
type Server struct {
	echo     *echo.Echo
	detector Detector
	logger   *logging.Logger
	config   *Config
	version  string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BodyLimit caps request bodies, e.g. "1M". Empty disables the limit.
	BodyLimit string

	// Version is reported by GET /health.
	Version string
}

// NewServer creates a new HTTP server.
func NewServer(det Detector, logger *logging.Logger, cfg *Config) (*Server, error) {
	if det == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:      "localhost",
			Port:      8088,
			BodyLimit: "1M",
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		detector: det,
		logger:   logger.Named("http"),
		config:   cfg,
		version:  cfg.Version,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(NewHTTPMetrics(s.logger).MetricsMiddleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let echo write the response so the logged status is final.
			c.Error(err)
		}

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/index", s.handleIndex)
	v1.POST("/tickets/check", s.handleCheck)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func (s *Server) handleIndex(c echo.Context) error {
	var req IndexRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if err := s.detector.InitIndex(ctx, req.Force); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(http.StatusCreated, IndexResponse{
		Index:   s.detector.Index().Name,
		Created: true,
		Force:   req.Force,
	})
}

func (s *Server) handleCheck(c echo.Context) error {
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid check request", zap.Error(err))
		return s.writeError(c, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
	}

	report, err := s.detector.Check(c.Request().Context(), req.toDetector())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	ctx := c.Request().Context()
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", zap.Error(err), zap.String("code", code))
	} else {
		s.logger.Debug(ctx, "request rejected", zap.Error(err), zap.String("code", code))
	}
	return s.writeError(c, status, code, err.Error())
}

func (s *Server) writeError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	if err := s.echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
