package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/requests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/requests/"+id, nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requestCounter.WithLabelValues("GET", "/api/requests/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requestCounter.WithLabelValues("GET", "unknown", "404")))
}

func TestHandlerExposesUpstreamCalls(t *testing.T) {
	m := New()
	m.ObserveCall("negotiation", "success", 20*time.Millisecond)
	m.ObserveCall("negotiation", "failure", 10*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.externalCallCounter.WithLabelValues("negotiation", "failure")))

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `external_calls_total{outcome="success",service="negotiation"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
