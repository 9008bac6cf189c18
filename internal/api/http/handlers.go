package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/dashworker/internal/api/middleware"
	"github.com/GriffinCanCode/dashworker/internal/manifest"
)

const version = "0.1.0"

// SessionCounter reports connected worker sessions.
type SessionCounter interface {
	Sessions() int64
}

// Handlers contains the HTTP handlers around the worker endpoint.
type Handlers struct {
	sessions SessionCounter
	manifest manifest.Manifest
	builtin  []string
	started  time.Time
}

// NewHandlers creates the handlers. builtin lists the packages available
// without fetching.
func NewHandlers(sessions SessionCounter, m manifest.Manifest, builtin []string) *Handlers {
	return &Handlers{
		sessions: sessions,
		manifest: m,
		builtin:  builtin,
		started:  time.Now(),
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "dashworker",
		"version": version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"sessions":   h.sessions.Sessions(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"request_id": middleware.GetRequestID(c),
	})
}

// Manifest reports the packages every session installs at startup.
func (h *Handlers) Manifest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"packages": h.manifest.Packages,
		"builtin":  h.builtin,
	})
}
