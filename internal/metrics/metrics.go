// Package metrics exposes Prometheus metrics for HTTP traffic and upstream calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for the service
type Metrics struct {
	registry            *prometheus.Registry
	requestCounter      *prometheus.CounterVec
	latencyHist         *prometheus.HistogramVec
	externalCallCounter *prometheus.CounterVec
	externalCallLatency *prometheus.HistogramVec
}

// New creates a registry with the HTTP, upstream, Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		latencyHist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		externalCallCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "external_calls_total",
			Help: "Total number of upstream service calls by outcome",
		}, []string{"service", "outcome"}),
		externalCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "external_call_duration_seconds",
			Help:    "Duration of upstream service calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.latencyHist,
		m.externalCallCounter,
		m.externalCallLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latencyHist.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveCall records an upstream call
func (m *Metrics) ObserveCall(service, outcome string, duration time.Duration) {
	m.externalCallCounter.WithLabelValues(service, outcome).Inc()
	m.externalCallLatency.WithLabelValues(service).Observe(duration.Seconds())
}
