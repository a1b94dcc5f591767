package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one backing dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler interface {
	Health(c *gin.Context)
}

type healthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) HealthHandler {
	return &healthHandler{checks: checks}
}

// Health reports per-dependency status; any failing dependency turns the
// whole response into a 503 so load balancers pull the instance.
func (h *healthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	overall := "ok"
	checks := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			overall = "degraded"
			continue
		}
		checks[name] = "up"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}
