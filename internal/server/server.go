// Package server exposes the HTTP trigger: GET or POST /run performs one
// reconciliation and answers with its plain-text message.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Runner is the subset of runner.Runner the server drives.
type Runner interface {
	RunOnce(ctx context.Context) core.RunResult
	LastResult() (core.RunResult, bool)
	Market() string
}

type Server struct {
	runner  Runner
	metrics http.Handler
	logger  *slog.Logger
	echo    *echo.Echo
}

// New builds the server. metrics may be nil, in which case /metrics is not
// mounted.
func New(runner Runner, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http_request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	s := &Server{runner: runner, metrics: metrics, logger: logger, echo: e}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/run", s.handleRun)
	s.echo.POST("/run", s.handleRun)
	s.echo.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start(addr string) error {
	s.logger.Info("http_server_listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleRun detaches from the request so a caller hanging up cannot cut a run
// short between notifying and recording.
func (s *Server) handleRun(c echo.Context) error {
	result := s.runner.RunOnce(context.WithoutCancel(c.Request().Context()))
	return c.String(result.StatusCode(), result.Message)
}

type lastRun struct {
	RunID       string    `json:"run_id"`
	Outcome     string    `json:"outcome"`
	Message     string    `json:"message"`
	Detected    int       `json:"detected"`
	Degraded    bool      `json:"load_degraded"`
	CompletedAt time.Time `json:"completed_at"`
}

func (s *Server) handleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "healthy",
		"service": "salewatch",
		"market":  s.runner.Market(),
	}
	if last, ok := s.runner.LastResult(); ok {
		body["last_run"] = lastRun{
			RunID:       last.RunID,
			Outcome:     string(last.Outcome),
			Message:     last.Message,
			Detected:    last.Detected,
			Degraded:    last.LoadDegraded,
			CompletedAt: last.CompletedAt,
		}
	}
	return c.JSON(http.StatusOK, body)
}
