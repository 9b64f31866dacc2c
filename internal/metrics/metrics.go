// Package metrics exposes the gateway's Prometheus instrumentation:
// registering and serving its own counters and gauges, the standard way
// a Go service instruments itself for scraping.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every counter/gauge the gateway updates.
type Registry struct {
	RequestsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	AuthRefreshTotal *prometheus.CounterVec
	ModelCacheSize  prometheus.Gauge
}

// New registers every metric against a fresh prometheus.Registry, so
// tests can construct independent instances without colliding on the
// default global registry.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiro_gateway_requests_total",
			Help: "Inbound requests by route and response status.",
		}, []string{"route", "status"}),

		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiro_gateway_upstream_retries_total",
			Help: "Upstream HTTP retry attempts by reason.",
		}, []string{"reason"}),

		AuthRefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiro_gateway_auth_refresh_total",
			Help: "Upstream credential refresh attempts by outcome.",
		}, []string{"outcome"}),

		ModelCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kiro_gateway_model_cache_size",
			Help: "Number of models currently held in the Model Metadata Cache.",
		}),
	}, reg
}

// Handler returns the gin.HandlerFunc serving reg in Prometheus text
// exposition format at GET /metrics.
func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// ObserveRequest records one completed inbound request.
func (r *Registry) ObserveRequest(route string, status int) {
	r.RequestsTotal.WithLabelValues(route, statusBucket(status)).Inc()
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
