package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/kiranshivaraju/partscout/internal/config"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_DIR", t.TempDir())
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("REDIS_URL", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := loadTestConfig(t)
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.svc.Shutdown(ctx))
		assert.NoError(t, a.close())
	})
	return a
}

// ============================================================
// newApp
// ============================================================

func TestNewApp_HealthWithoutRedis(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Status     string            `json:"status"`
			Services   map[string]string `json:"services"`
			AIProvider string            `json:"ai_provider"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, "disabled", body.Data.Services["cache"])
	assert.Equal(t, "mock", body.Data.AIProvider)
}

func TestNewApp_ServesMetrics(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewApp_KeywordJobCompletes(t *testing.T) {
	a := newTestApp(t)

	body := strings.NewReader(`{"job_id":"main-test-1","keywords":["crankshaft","pistons"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		a.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/main-test-1/status", nil))
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"completed"`)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewApp_DeleteDisabledWithoutOperatorHash(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/anything", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNewApp_UnreachableRedisFails(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Redis.URL = "redis://127.0.0.1:1/0"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, err := newApp(ctx, cfg)

	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNewApp_UnknownStoreBackend(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Store.Backend = "s3"

	_, err := newApp(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open job store")
}

// ============================================================
// close / parseLevel
// ============================================================

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestAppClose_ReverseOrderAndCombinedErrors(t *testing.T) {
	var order []string
	closer := func(name string, err error) io.Closer {
		return closeFunc(func() error {
			order = append(order, name)
			return err
		})
	}
	a := &app{closers: []io.Closer{
		closer("store", errors.New("store busy")),
		closer("cache", nil),
		closer("provider", errors.New("provider busy")),
	}}

	err := a.close()

	assert.Equal(t, []string{"provider", "cache", "store"}, order)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.NoError(t, a.close(), "second close is a no-op")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
