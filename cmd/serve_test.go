package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amurex/inboxtagger/internal/config"
	"github.com/amurex/inboxtagger/internal/pipeline"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "json",
			cfg:  config.LogConfig{Level: "info", Format: "json"},
			check: func(t *testing.T, out string) {
				var line map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &line))
				assert.Equal(t, "hello", line["msg"])
			},
		},
		{
			name: "text",
			cfg:  config.LogConfig{Level: "info", Format: "text"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
			},
		},
		{
			name: "default level",
			cfg:  config.LogConfig{},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
			},
		},
		{
			name:    "unknown format",
			cfg:     config.LogConfig{Format: "xml"},
			wantErr: true,
		},
		{
			name:    "unknown level",
			cfg:     config.LogConfig{Level: "loud"},
			wantErr: true,
		},
	}

	defer slog.SetDefault(slog.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Debug("hidden")
			logger.Info("hello")
			assert.NotContains(t, buf.String(), "hidden")
			tt.check(t, strings.TrimSpace(buf.String()))
		})
	}
}

func TestNewLoggerDebug(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LogConfig{Level: "debug"})
	require.NoError(t, err)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Google.Legacy.ClientID, cfg.Google.Legacy.ClientSecret = "legacy-id", "legacy-secret"
	cfg.Google.Current.ClientID, cfg.Google.Current.ClientSecret = "current-id", "current-secret"
	cfg.LLM.APIKey = "test-key"
	cfg.Database.URL = ""
	cfg.Redis.Addr = ""
	cfg.Instrumentation.Enabled = false
	return cfg
}

func TestNewAppWithoutExternalServices(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	require.NotNil(t, a.pipeline)
	assert.False(t, a.provider.Enabled())
	assert.Empty(t, a.checks)
	assert.Equal(t, "Amurex", a.pipeline.Options().LabelPrefix)

	// The in-memory store knows no accounts.
	_, err = a.pipeline.Run(context.Background(), pipeline.Request{UserID: "missing"})
	require.Error(t, err)
	assert.Equal(t, pipeline.KindBadRequest, pipeline.KindOf(err))
}

func TestNewAppRequiresModelKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""

	_, err := newApp(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

type stubRunner struct {
	out *pipeline.Outcome
	err error
}

func (s stubRunner) Run(context.Context, pipeline.Request) (*pipeline.Outcome, error) {
	return s.out, s.err
}

func TestRunOnce(t *testing.T) {
	var buf bytes.Buffer
	err := runOnce(context.Background(), stubRunner{out: &pipeline.Outcome{
		Message:     pipeline.MsgProcessed,
		Processed:   1,
		TotalStored: 1,
		TotalFound:  1,
		Results:     []pipeline.Result{{MessageID: "m1", Subject: "s", Category: "FYI", Success: true}},
	}}, pipeline.Request{UserID: "u1"}, &buf)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["processed"])
}

func TestRunOnceFailure(t *testing.T) {
	var buf bytes.Buffer
	runErr := &pipeline.Error{Kind: pipeline.KindPermission, Msg: pipeline.MsgPermission}
	err := runOnce(context.Background(), stubRunner{err: runErr}, pipeline.Request{UserID: "u1"}, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, runErr)
	assert.Contains(t, err.Error(), "403")

	var body map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "insufficient_permissions", body["errorType"])
}

func TestValidateMigrateArgs(t *testing.T) {
	assert.NoError(t, validateMigrateArgs(nil, []string{"up"}))
	assert.NoError(t, validateMigrateArgs(nil, []string{"up-to", "2"}))
	assert.Error(t, validateMigrateArgs(nil, nil))
	assert.Error(t, validateMigrateArgs(nil, []string{"sideways"}))
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")

	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "inboxtagger version 1.2.3\n", buf.String())
}
