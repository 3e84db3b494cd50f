package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/server"
)

func newTestServer(setup func(*gin.Engine)) *server.Server {
	return server.New(server.Config{ServiceName: "shelter-sync", ServiceVersion: "test"}, logger.NewNop(), setup)
}

func get(router http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRecoveryMiddleware(t *testing.T) {
	srv := newTestServer(func(r *gin.Engine) {
		r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	})

	w := get(srv.Router(), "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRequestIDMiddleware(t *testing.T) {
	srv := newTestServer(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })
	})

	w := get(srv.Router(), "/ping", http.Header{server.RequestIDHeader: []string{"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(server.RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())

	w = get(srv.Router(), "/ping", nil)
	assert.NotEmpty(t, w.Header().Get(server.RequestIDHeader))
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(func(r *gin.Engine) {
			server.RegisterHealthRoutes(r, "shelter-sync", "test", map[string]server.HealthCheck{
				"database": func(context.Context) error { return nil },
			})
		})

		w := get(srv.Router(), "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp server.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, server.HealthStatusHealthy, resp.Status)
		assert.Equal(t, "shelter-sync", resp.Service)
		assert.Equal(t, server.HealthStatusHealthy, resp.Checks["database"].Status)
	})

	t.Run("unhealthy dependency", func(t *testing.T) {
		srv := newTestServer(func(r *gin.Engine) {
			server.RegisterHealthRoutes(r, "shelter-sync", "test", map[string]server.HealthCheck{
				"database":      func(context.Context) error { return nil },
				"elasticsearch": func(context.Context) error { return errors.New("connection refused") },
			})
		})

		w := get(srv.Router(), "/health", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp server.HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, server.HealthStatusUnhealthy, resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["elasticsearch"].Message)
	})
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "shelter_sync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := newTestServer(func(r *gin.Engine) {
		server.RegisterMetricsRoute(r, "/metrics", reg)
	})

	w := get(srv.Router(), "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shelter_sync_test_total 1")
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := newTestServer(nil)
	require.NoError(t, srv.Shutdown(context.Background()))
}
