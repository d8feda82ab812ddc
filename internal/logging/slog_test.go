package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture returns a JSON logger and a func decoding the last record it wrote.
func capture(t *testing.T) (*slog.Logger, func() map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() map[string]any {
		t.Helper()
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
		return rec
	}
}

func TestScopedLoggers(t *testing.T) {
	logger, last := capture(t)

	l := WithOperation(logger, "pipeline.run")
	l = WithService(l, "gmail")
	l = WithUser(l, "5b0c7f1e-0000-4000-8000-000000000001")
	l = WithRequestID(l, "req-1")
	l.Info("message labeled", MessageID("18c2f"), Category("FYI"), Duration(1500*time.Millisecond), Status("success"))

	rec := last()
	assert.Equal(t, "pipeline.run", rec[KeyOperation])
	assert.Equal(t, "gmail", rec[KeyService])
	assert.Equal(t, "5b0c7f1e-0000-4000-8000-000000000001", rec[KeyUser])
	assert.Equal(t, "req-1", rec[KeyRequestID])
	assert.Equal(t, "18c2f", rec[KeyMessageID])
	assert.Equal(t, "FYI", rec[KeyCategory])
	assert.Equal(t, "success", rec[KeyStatus])
	assert.EqualValues(t, 1500*time.Millisecond, rec[KeyDuration])
}

func TestErr(t *testing.T) {
	logger, last := capture(t)

	logger.Error("failed", Err(errors.New("boom")))
	assert.Equal(t, "boom", last()[KeyError])

	logger.Info("ok", Err(nil))
	_, present := last()[KeyError]
	assert.False(t, present, "nil error must not produce an attribute")
}

func TestUserHash(t *testing.T) {
	a := UserHash("alice@example.com").Value.String()
	b := UserHash("bob@example.com").Value.String()

	assert.True(t, strings.HasPrefix(a, "user:"))
	assert.Len(t, a, len("user:")+16)
	assert.NotContains(t, a, "alice")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, UserHash("alice@example.com").Value.String(), "hash must be stable")
	assert.Equal(t, KeyUserHash, UserHash("").Key)
	assert.Empty(t, UserHash("").Value.String())
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "<empty>"},
		{"ya29.a0AfH6SMBx", "[token:15 chars]"},
		{"x", "[token:1 chars]"},
	}
	for _, tt := range tests {
		got := SanitizeToken(tt.token)
		assert.Equal(t, tt.want, got)
		if tt.token != "" {
			assert.NotContains(t, got, tt.token)
		}
	}
}

func TestGooseLogger(t *testing.T) {
	logger, last := capture(t)

	NewGooseLogger(logger).Printf("OK   %s (%v)\n", "00001_init.sql", "12ms")

	rec := last()
	assert.Equal(t, "OK   00001_init.sql (12ms)", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "migrations", rec[KeyService])
}

func TestNewGooseLoggerDefaultsToSlogDefault(t *testing.T) {
	g := NewGooseLogger(nil)
	require.NotNil(t, g)
	assert.NotNil(t, g.logger)
}
