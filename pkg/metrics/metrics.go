// Package metrics exposes Prometheus counters/histograms for request
// handling, one instance shared across the dispatcher's lifetime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every metric the gateway emits.
type Registry struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	AuthFailures    *prometheus.CounterVec
}

// New registers and returns the gateway's metrics against reg.
func New(reg *prometheus.Registry) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portway_requests_total",
			Help: "Total number of gateway requests by environment, endpoint, method, and status.",
		}, []string{"environment", "endpoint", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portway_request_duration_seconds",
			Help:    "Request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"environment", "endpoint", "method"}),
		ActiveRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portway_active_requests",
			Help: "Number of requests currently being handled.",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portway_auth_failures_total",
			Help: "Total authentication/authorization failures by reason.",
		}, []string{"reason"}),
	}
}

// Observe records one completed request.
func (r *Registry) Observe(env, endpoint, method, status string, d time.Duration) {
	r.RequestsTotal.WithLabelValues(env, endpoint, method, status).Inc()
	r.RequestDuration.WithLabelValues(env, endpoint, method).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving metrics in Prometheus exposition
// format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
