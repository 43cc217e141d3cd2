// Package http serves the cortex journal over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/analysis"
	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/logging"
	"github.com/fyrsmithlabs/cortex/internal/notes"
	"github.com/fyrsmithlabs/cortex/internal/services"
)

// Server provides the HTTP endpoints for cortex.
type Server struct {
	echo     *echo.Echo
	registry services.Registry
	journal  *journal.Service
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit caps request bodies, in echo's size syntax ("2M").
	BodyLimit string
}

// NewServer creates a new HTTP server over the journal in reg.
func NewServer(reg services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if reg == nil || reg.Journal() == nil {
		return nil, fmt.Errorf("journal service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	var meter metric.Meter
	if tel := reg.Telemetry(); tel != nil {
		meter = tel.Meter(httpInstrumentationName)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return err
		}
	})
	e.Use(NewHTTPMetrics(meter, logger).MetricsMiddleware())

	s := &Server{
		echo:     e,
		registry: reg,
		journal:  reg.Journal(),
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)

	v1.POST("/thoughts", s.handleSubmit)

	v1.GET("/sessions", s.handleSessions)
	v1.POST("/sessions/import", s.handleImport)
	v1.DELETE("/sessions", s.handleClear)

	v1.GET("/patterns/core-tension", s.handlePattern)
	v1.GET("/patterns/drift", s.handleDrift)

	v1.GET("/tensions/map", s.handleTensionMap)
	v1.GET("/tensions/nodes", s.handleNodes)
	v1.GET("/tensions/edges", s.handleEdges)
	v1.GET("/tensions/clusters", s.handleClusters)
	v1.GET("/timeline", s.handleTimeline)
	v1.GET("/report", s.handleReport)

	v1.GET("/nodes/:id/note", s.handleGetNote)
	v1.PUT("/nodes/:id/note", s.handleSetNote)

	v1.POST("/invite/:code", s.handleInvite)
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// toHTTPError maps journal and analysis errors onto status codes.
func (s *Server) toHTTPError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var apiErr *analysis.APIError
	switch {
	case errors.Is(err, journal.ErrEmptyThought),
		errors.Is(err, journal.ErrThoughtTooLong),
		errors.Is(err, notes.ErrNoteTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrInviteDenied):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, analysis.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analysis service unavailable")
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, apiErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}

	s.logger.Error("request failed",
		append(logging.ContextFields(c.Request().Context()), zap.Error(err))...)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
