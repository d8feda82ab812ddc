package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnavailable  = "unavailable"

	dependencyCheckTimeout = 2 * time.Second
)

// HealthChecker answers the liveness and readiness probes. Readiness also
// pings every dependency registered with ServerContext.AddReadinessCheck.
type HealthChecker struct {
	ready   atomic.Bool
	sc      *ServerContext
	started time.Time
}

// NewHealthChecker returns a checker that reports ready until SetReady(false).
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, started: time.Now()}
	h.ready.Store(true)
	return h
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// probe is one evaluation of the server state.
type probe struct {
	ready    bool
	stopping bool
	deps     map[string]error
}

func (p probe) depsOK() bool {
	for _, err := range p.deps {
		if err != nil {
			return false
		}
	}
	return true
}

// status is the overall verdict. Readiness is reported before shutdown and
// shutdown before dependency failures.
func (p probe) status() string {
	switch {
	case !p.ready:
		return healthStatusNotReady
	case p.stopping:
		return healthStatusShuttingDown
	case !p.depsOK():
		return healthStatusUnavailable
	}
	return healthStatusOK
}

func (h *HealthChecker) probe(ctx context.Context) probe {
	p := probe{ready: h.ready.Load()}
	if h.sc == nil {
		return p
	}
	p.stopping = h.sc.IsShutdown()
	ctx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
	defer cancel()
	p.deps = h.sc.CheckDependencies(ctx)
	return p
}

func okOr(cond bool, failed string) string {
	if cond {
		return healthStatusOK
	}
	return failed
}

func httpStatus(ok bool) int {
	if ok {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(e *echo.Echo) {
	e.GET("/healthz", h.liveness)
	e.GET("/readyz", h.readiness)
	e.GET("/healthz/detailed", h.detailed)
}

// liveness never consults dependencies; a restart would not fix them.
func (h *HealthChecker) liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: healthStatusOK})
}

func (h *HealthChecker) readiness(c echo.Context) error {
	p := h.probe(c.Request().Context())

	checks := map[string]string{
		"ready":    okOr(p.ready, healthStatusNotReady),
		"shutdown": okOr(!p.stopping, healthStatusShuttingDown),
	}
	for name, err := range p.deps {
		checks[name] = okOr(err == nil, healthStatusUnavailable)
	}

	ok := p.status() == healthStatusOK
	return c.JSON(httpStatus(ok), HealthResponse{
		Status: okOr(ok, healthStatusNotReady),
		Checks: checks,
	})
}

func (h *HealthChecker) detailed(c echo.Context) error {
	p := h.probe(c.Request().Context())

	resp := DetailedHealthResponse{
		Status: p.status(),
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	}
	if len(p.deps) > 0 {
		resp.Dependencies = make(map[string]string, len(p.deps))
		for name, err := range p.deps {
			if err != nil {
				resp.Dependencies[name] = err.Error()
			} else {
				resp.Dependencies[name] = healthStatusOK
			}
		}
	}
	return c.JSON(httpStatus(resp.Status == healthStatusOK), resp)
}
