package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// GooseLogger routes schema migration output through slog. It satisfies
// goose.Logger.
type GooseLogger struct {
	logger *slog.Logger
}

// NewGooseLogger wraps logger, falling back to slog.Default() when nil.
func NewGooseLogger(logger *slog.Logger) *GooseLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &GooseLogger{logger: logger.With(slog.String(KeyService, "migrations"))}
}

// Printf logs one migration progress line at info level.
func (g *GooseLogger) Printf(format string, v ...any) {
	g.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level and exits the process, as goose expects.
func (g *GooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}
