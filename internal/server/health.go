package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 3 * time.Second

// HealthStatus is the status of the service or one dependency.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Latency string       `json:"latency"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// RegisterHealthRoutes adds GET and HEAD /health. Any failing check makes
// the service unhealthy and the response a 503.
func RegisterHealthRoutes(router *gin.Engine, service, version string, checks map[string]HealthCheck) {
	started := time.Now()

	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) {
		resp := HealthResponse{
			Status:  HealthStatusHealthy,
			Service: service,
			Version: version,
			Uptime:  time.Since(started).Truncate(time.Second).String(),
		}

		if len(checks) > 0 {
			resp.Checks = make(map[string]CheckResult, len(checks))
			for name, check := range checks {
				result := runCheck(c.Request.Context(), check)
				resp.Checks[name] = result
				if result.Status != HealthStatusHealthy {
					resp.Status = HealthStatusUnhealthy
				}
			}
		}

		status := http.StatusOK
		if resp.Status != HealthStatusHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	})
}

func runCheck(ctx context.Context, check HealthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Status: HealthStatusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		result.Status = HealthStatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// RegisterMetricsRoute exposes gatherer in the Prometheus text format.
func RegisterMetricsRoute(router *gin.Engine, path string, gatherer prometheus.Gatherer) {
	router.GET(path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
