package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/quotes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quotes/"+id, nil))
	}

	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, "/quotes/:id", "200"))
	assert.Equal(t, 2.0, got)
}

func TestObserveHelpersAreNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGatewayCall("create_quote", "ok", time.Millisecond)
	m.ObserveTransition("draft", "sent")
	m.ObserveStageChange("proposal", "quote_sent")
}

func TestHandlerExposesGatewayMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveGatewayCall("send", "transient", 20*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `invoice_gateway_calls_total{operation="send",outcome="transient"} 1`))
}
