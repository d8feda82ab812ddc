package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// DefaultAPIAddr is the default address for the API server.
	DefaultAPIAddr = ":8080"

	// ProcessLabelsRoute is the batch entry point.
	ProcessLabelsRoute = "/api/gmail/process-labels"
)

// APIServerConfig holds configuration for the API server.
type APIServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// APIServer serves the pipeline endpoint and the health probes.
type APIServer struct {
	echo       *echo.Echo
	httpServer *http.Server
	health     *HealthChecker
	sc         *ServerContext
	addr       string
}

// NewAPIServer creates the API server.
func NewAPIServer(config APIServerConfig, sc *ServerContext) (*APIServer, error) {
	if sc == nil {
		return nil, errors.New("server context is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAPIAddr
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(accessLog(sc))

	s := &APIServer{
		echo:   e,
		health: NewHealthChecker(sc),
		sc:     sc,
		addr:   config.Addr,
	}
	s.health.RegisterHealthEndpoints(e)
	e.POST(ProcessLabelsRoute, s.processLabels)

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           e,
		ReadHeaderTimeout: config.ReadTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *APIServer) Handler() http.Handler {
	return s.echo
}

// Start starts the API server in a blocking manner.
func (s *APIServer) Start() error {
	s.sc.Logger().Info("starting API server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server as not ready and drains in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.sc.Logger().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured address.
func (s *APIServer) Addr() string {
	return s.addr
}
