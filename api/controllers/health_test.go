package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentals-backend/pkg/config"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var healthCfg = &config.Config{App: config.AppConfig{Env: "dev", Version: "1.2.3"}}

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	deps := map[string]Pinger{
		"db":    pingFunc(func(context.Context) error { return nil }),
		"redis": pingFunc(func(context.Context) error { return nil }),
	}
	resp := httptest.NewRecorder()
	HealthReady(healthCfg, testLog, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeData[map[string]any](t, resp)
	assert.Equal(t, "ready", out["status"])
}

func TestHealthReadyReportsFailure(t *testing.T) {
	deps := map[string]Pinger{
		"db":    pingFunc(func(context.Context) error { return nil }),
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	resp := httptest.NewRecorder()
	HealthReady(healthCfg, testLog, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", decodeErrorCode(t, resp))
}

func TestVersion(t *testing.T) {
	resp := httptest.NewRecorder()
	Version(healthCfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1.2.3", decodeData[map[string]string](t, resp)["version"])
}
