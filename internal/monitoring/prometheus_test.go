package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupPrometheusMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	SetupPrometheusMetrics(r)
	r.GET("/api/v1/things/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/things/42", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "mirador_servicehealth_build_info")
	assert.Contains(t, body, `endpoint="/api/v1/things/:id"`)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(staleResponsesTotal.WithLabelValues("top_services"))
	RecordStaleResponse("top_services")
	assert.Equal(t, before+1, testutil.ToFloat64(staleResponsesTotal.WithLabelValues("top_services")))

	beforeErr := testutil.ToFloat64(errorsTotal.WithLabelValues("victoria_metrics", "instant"))
	RecordVictoriaMetricsQuery("instant", 10*time.Millisecond, false)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(errorsTotal.WithLabelValues("victoria_metrics", "instant")))

	RecordQueryError("transient")
	assert.GreaterOrEqual(t, testutil.ToFloat64(queryErrorsTotal.WithLabelValues("transient")), 1.0)

	WebsocketClientConnected()
	WebsocketClientDisconnected()
	assert.Equal(t, 0.0, testutil.ToFloat64(websocketClients))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/api/v1/items/:id/x", normalizeEndpoint("/api/v1/items/123/x"))
	assert.Equal(t, "/health", normalizeEndpoint("/health"))
}
