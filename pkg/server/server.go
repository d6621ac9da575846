// Package server assembles the HTTP ops surface: health checks,
// reconciliation controls, cache controls, and merchant reads.
package server

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/cacheops"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/routes/merchant"
	"github.com/Ramsey-B/clover/pkg/routes/reconcile"
)

// Server wraps the echo instance and its listen address.
type Server struct {
	echo   *echo.Echo
	logger ectologger.Logger
	port   int
}

// New builds the echo app with clover's middleware chain and routes.
func New(logger ectologger.Logger, checker *health.Checker, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware("clover"))
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	reconcile.Register(api.Group("/reconcile"))
	cacheops.Register(api.Group("/cache"))
	merchant.Register(api.Group("/merchants"))

	return &Server{
		echo:   e,
		logger: logger,
		port:   port,
	}
}

// Echo exposes the underlying instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.WithFields(map[string]any{"addr": addr}).Info("HTTP server starting")
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
