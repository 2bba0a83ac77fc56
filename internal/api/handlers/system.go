package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/receiptscan/pkg/dto"
)

// ReadinessCheck pings one dependency. A nil Ping marks a client that is not
// configured; it is reported but does not fail readiness, since requests
// needing it fail on their own with a clear message.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type SystemHandler struct {
	checks []ReadinessCheck
}

func NewSystemHandler(checks ...ReadinessCheck) *SystemHandler {
	return &SystemHandler{checks: checks}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	for _, chk := range h.checks {
		if chk.Ping == nil {
			checks[chk.Name] = "not configured"
			continue
		}
		if err := chk.Ping(ctx); err != nil {
			checks[chk.Name] = err.Error()
			healthy = false
		} else {
			checks[chk.Name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, dto.ReadinessResponse{
		Status: map[bool]string{true: "ready", false: "not ready"}[healthy],
		Checks: checks,
	})
}
