package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dashworker/internal/api/middleware"
	"github.com/GriffinCanCode/dashworker/internal/manifest"
)

type fixedSessions int64

func (f fixedSessions) Sessions() int64 { return int64(f) }

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(fixedSessions(2), manifest.Default(), []string{"dateutil", "hvplot", "panel"})

	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/manifest", h.Manifest)
	return router
}

func get(t *testing.T, router *gin.Engine, path string) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	body := get(t, setupRouter(), "/")
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "dashworker", body["service"])
}

func TestHealth(t *testing.T) {
	body := get(t, setupRouter(), "/health")
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 2, body["sessions"])
	assert.NotEmpty(t, body["request_id"])
}

func TestManifest(t *testing.T) {
	body := get(t, setupRouter(), "/manifest")
	assert.Equal(t, []any{"panel", "hvplot", "dateutil"}, body["packages"])
	assert.Len(t, body["builtin"], 3)
}
