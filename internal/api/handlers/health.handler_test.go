package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-servicehealth/pkg/cache"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func readiness(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/ready", h.ReadinessCheck)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler(nil, nil, logger.NewNop()).HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"mirador-servicehealth"`)
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("connection refused") })
	noop := cache.NewNoopValkeyCache(logger.NewNop(), time.Minute)

	t.Run("healthy with degraded cache", func(t *testing.T) {
		code, body := readiness(t, NewHealthHandler(ok, noop, logger.NewNop()))
		assert.Equal(t, http.StatusOK, code)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "degraded", checks["valkey"].(map[string]any)["status"])
	})

	t.Run("metrics backend down", func(t *testing.T) {
		code, body := readiness(t, NewHealthHandler(down, nil, logger.NewNop()))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body["status"])
		_, hasCache := body["checks"].(map[string]any)["valkey"]
		assert.False(t, hasCache)
	})
}
