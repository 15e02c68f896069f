package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragchat/pkg/component/storage"
	"github.com/kart-io/ragchat/pkg/infra/app"
)

// HealthHandler reports the health of the registered dependencies.
type HealthHandler struct {
	manager *storage.Manager
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(manager *storage.Manager, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{manager: manager, timeout: timeout}
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status       string                          `json:"status"`
	Version      string                          `json:"version"`
	Dependencies map[string]storage.HealthStatus `json:"dependencies"`
}

// Healthz answers 200 when every dependency is healthy and 503 otherwise.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	statuses := h.manager.HealthCheckAll(ctx)
	resp := HealthResponse{
		Status:       "ok",
		Version:      app.GetVersion(),
		Dependencies: statuses,
	}

	code := http.StatusOK
	for _, s := range statuses {
		if !s.Healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, resp)
}
