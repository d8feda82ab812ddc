package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func getJSON(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestAPI(t, &fakeRunner{})
	srv.sc.AddReadinessCheck("postgres", fakePinger{})

	code, body := getJSON(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = getJSON(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["postgres"])

	code, body = getJSON(t, srv.Handler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestReadinessFailsOnDependency(t *testing.T) {
	srv := newTestAPI(t, &fakeRunner{})
	srv.sc.AddReadinessCheck("redis", fakePinger{err: errors.New("connection refused")})

	code, body := getJSON(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "unavailable", body["checks"].(map[string]any)["redis"])

	code, body = getJSON(t, srv.Handler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])

	// Liveness does not depend on other services.
	code, _ = getJSON(t, srv.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadinessAfterShutdown(t *testing.T) {
	srv := newTestAPI(t, &fakeRunner{})

	require.NoError(t, srv.Shutdown(context.Background()))
	code, _ := getJSON(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	require.NoError(t, srv.sc.Shutdown())
	assert.True(t, srv.sc.IsShutdown())
	code, body := getJSON(t, srv.Handler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])
}
