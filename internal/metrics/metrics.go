// Package metrics expone las métricas Prometheus del servicio: transiciones
// de estado de los controladores, duración de operaciones y tráfico HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/storefront-service/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector agrupa los collectors en un registry propio
type Collector struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	operations     *prometheus.HistogramVec
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector crea y registra todas las métricas
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "state_transitions_total",
			Help:      "State transitions published by request controllers.",
		}, []string{"controller", "state"}),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "operation_duration_seconds",
			Help:      "Duration of controller operations by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"controller", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "active_sessions",
			Help:      "UI sessions with a live invoice flow.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.transitions,
		c.operations,
		c.activeSessions,
		c.httpRequests,
		c.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	return c
}

// Transition implementa state.Recorder
func (c *Collector) Transition(controller string, to state.Kind) {
	c.transitions.WithLabelValues(controller, to.String()).Inc()
}

// Completed implementa state.Recorder
func (c *Collector) Completed(controller string, outcome state.Kind, elapsed time.Duration) {
	c.operations.WithLabelValues(controller, outcome.String()).Observe(elapsed.Seconds())
}

// SetActiveSessions actualiza el número de sesiones vivas
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// Registry retorna el registry para tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler expone las métricas registradas
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware registra cada request HTTP con la ruta de gin, no el path crudo
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" {
			return
		}

		c.httpRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
