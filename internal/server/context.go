package server

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/pipeline"
)

// Runner runs the ingestion pipeline for one account.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Pinger is a dependency readiness checks can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerContext holds the dependencies shared by the HTTP handlers.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	runner   Runner
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
	checks   map[string]Pinger
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context around runner.
func NewServerContext(ctx context.Context, runner Runner, logger *slog.Logger) (*ServerContext, error) {
	if runner == nil {
		return nil, errors.New("pipeline runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		runner: runner,
		logger: logger,
		checks: make(map[string]Pinger),
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Runner returns the pipeline runner.
func (sc *ServerContext) Runner() Runner {
	return sc.runner
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMetrics sets the metrics used for HTTP instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the HTTP metrics, nil when instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AddReadinessCheck registers a dependency probed by /readyz.
func (sc *ServerContext) AddReadinessCheck(name string, p Pinger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.checks[name] = p
}

// CheckDependencies pings every registered dependency and returns the
// failures keyed by name.
func (sc *ServerContext) CheckDependencies(ctx context.Context) map[string]error {
	sc.mu.RLock()
	names := make([]string, 0, len(sc.checks))
	for name := range sc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]Pinger, len(sc.checks))
	for k, v := range sc.checks {
		checks[k] = v
	}
	sc.mu.RUnlock()

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = checks[name].Ping(ctx)
	}
	return results
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
