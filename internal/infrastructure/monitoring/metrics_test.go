package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolated(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordInstall(true, time.Millisecond)
	a.RecordInstall(false, time.Millisecond)
	b.RecordInstall(false, time.Millisecond)

	assert.Equal(t, 1.0, value(t, a.Installs.WithLabelValues("success")))
	assert.Equal(t, 1.0, value(t, a.Installs.WithLabelValues("error")))
	assert.Equal(t, 0.0, value(t, b.Installs.WithLabelValues("success")))
}

func TestRecordMessageAndSessions(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage("out", "status")
	m.RecordMessage("out", "status")
	m.RecordMessage("in", "patch")
	m.IncSessions()
	m.IncSessions()
	m.DecSessions()

	assert.Equal(t, 2.0, value(t, m.Messages.WithLabelValues("out", "status")))
	assert.Equal(t, 1.0, value(t, m.Messages.WithLabelValues("in", "patch")))
	assert.Equal(t, 1.0, value(t, m.SessionsActive))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `worker_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, w.Body.String(), "worker_uptime_seconds")
}

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}
