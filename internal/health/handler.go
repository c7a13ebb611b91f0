// Package health exposes liveness and readiness probes for the
// signaling process. This service has no external dependency to probe,
// so readiness only reports what the ready func given to NewHandler
// returns.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves /healthz and /readyz.
type Handler struct {
	ready func() bool
}

// NewHandler builds a health handler. ready is polled on every
// readiness check; a nil ready always reports ready.
func NewHandler(ready func() bool) *Handler {
	return &Handler{ready: ready}
}

type statusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Liveness reports whether the process is alive. No dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports whether the process is ready to accept connections.
func (h *Handler) Readiness(c *gin.Context) {
	ready := h.ready == nil || h.ready()
	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, statusResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
