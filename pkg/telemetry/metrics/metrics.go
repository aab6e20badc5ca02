// Package metrics exposes the gateway's Prometheus metrics, grounded on the
// teacher's pkg/telemetry/metrics — trimmed to the counters/histograms
// SPEC_FULL.md's telemetry section names: request count by provider/status,
// request latency, first-byte latency, cooldown transitions, config reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the gateway's registered metrics.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	firstByteDuration *prometheus.HistogramVec
	cooldownTotal     *prometheus.CounterVec
	configReloads     *prometheus.CounterVec
}

// New builds and registers the gateway's metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniapi",
			Name:      "requests_total",
			Help:      "Total number of proxied requests by provider and outcome status.",
		}, []string{"provider", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uniapi",
			Name:      "request_duration_seconds",
			Help:      "Total caller-facing request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		firstByteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uniapi",
			Name:      "first_byte_duration_seconds",
			Help:      "Time to first streamed byte, in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		cooldownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniapi",
			Name:      "provider_cooldowns_total",
			Help:      "Number of times a provider entered cooldown.",
		}, []string{"provider"}),

		configReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniapi",
			Name:      "config_reloads_total",
			Help:      "Number of configuration reload attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.requestsTotal, c.requestDuration, c.firstByteDuration, c.cooldownTotal, c.configReloads)
	return c
}

// RecordRequest records one terminated request's outcome and latency.
func (c *Collector) RecordRequest(provider, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(provider, status).Inc()
	c.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordFirstByte records the time to first streamed byte for a provider.
func (c *Collector) RecordFirstByte(provider string, d time.Duration) {
	c.firstByteDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordCooldown records a provider entering cooldown.
func (c *Collector) RecordCooldown(provider string) {
	c.cooldownTotal.WithLabelValues(provider).Inc()
}

// RecordReload records a config reload attempt's outcome ("success" or
// "failure").
func (c *Collector) RecordReload(outcome string) {
	c.configReloads.WithLabelValues(outcome).Inc()
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
