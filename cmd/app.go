package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/amurex/inboxtagger/internal/classifier"
	"github.com/amurex/inboxtagger/internal/config"
	"github.com/amurex/inboxtagger/internal/google"
	"github.com/amurex/inboxtagger/internal/instrumentation"
	"github.com/amurex/inboxtagger/internal/lock"
	"github.com/amurex/inboxtagger/internal/pipeline"
	"github.com/amurex/inboxtagger/internal/server"
	"github.com/amurex/inboxtagger/internal/store"
)

// accountStore is what the pipeline and the credential selector need from
// persistence.
type accountStore interface {
	pipeline.AccountStore
	pipeline.EmailStore
	google.CreationLookup
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// app holds the wired dependencies of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
	pipeline *pipeline.Pipeline
	checks   map[string]server.Pinger
	closers  []func() error
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("INBOXTAGGER_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	cfg.Instrumentation.ServiceVersion = version
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (supported: text, json)", cfg.Format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// newApp wires persistence, locking, credentials, the classifier and the
// pipeline from cfg. Call Close to release them.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]server.Pinger),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.provider, err = instrumentation.NewProvider(ctx, cfg.Instrumentation)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.provider.Shutdown(context.Background()) })
	metrics := a.provider.Metrics()

	accounts, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	selector := google.NewCredentialSelector(google.SelectorConfig{
		Cutoff:  cfg.Google.Cutoff,
		Legacy:  cfg.Google.Legacy,
		Current: cfg.Google.Current,
	}, accounts, metrics, logger)

	completer, err := classifier.NewOpenAICompleter(cfg.LLM, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	var audit *instrumentation.AuditLogger
	if a.provider.Enabled() {
		audit = instrumentation.NewAuditLogger(logger, cfg.Instrumentation.AuditLogging)
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Accounts:   accounts,
		Emails:     accounts,
		Mailboxes:  pipeline.NewGmailMailboxes(selector, metrics),
		Classifier: classifier.New(completer),
		Locker:     locker,
		Metrics:    metrics,
		Audit:      audit,
		Logger:     logger,
	}, cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (accountStore, error) {
	if a.cfg.Database.URL == "" {
		a.logger.Warn("DATABASE_URL is not set, using the in-memory store; accounts and messages are lost on exit")
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	a.checks["postgres"] = pg
	return pg, nil
}

func (a *app) openLocker(ctx context.Context) (pipeline.Locker, error) {
	if a.cfg.Redis.Addr == "" {
		a.logger.Info("REDIS_ADDR is not set, concurrent runs for the same account are not serialized")
		return lock.Noop{}, nil
	}
	rdb, err := lock.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	a.checks["redis"] = pingFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	return lock.NewRedis(rdb, a.cfg.Redis.LockTTL, a.logger), nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
