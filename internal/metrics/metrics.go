// Package metrics provides Prometheus metrics for the devtrack agent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	ExternalCalls   *prometheus.CounterVec
	DigestRunsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devtrack_commands_total",
				Help: "Total number of routed commands by intent and status.",
			},
			[]string{"intent", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devtrack_command_duration_seconds",
				Help:    "Command processing duration by intent.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"intent"},
		),
		ExternalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devtrack_external_calls_total",
				Help: "Total external HTTP calls by target and status.",
			},
			[]string{"target", "status"},
		),
		DigestRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devtrack_digest_runs_total",
				Help: "Total digest generations by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.CommandsTotal, m.CommandDuration, m.ExternalCalls, m.DigestRunsTotal)
	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one routed command. Nil-safe so callers can run
// without metrics in tests.
func (m *Metrics) ObserveCommand(intent, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(intent, status).Inc()
	m.CommandDuration.WithLabelValues(intent).Observe(dur.Seconds())
}

// ObserveExternalCall records one external HTTP call. Nil-safe.
func (m *Metrics) ObserveExternalCall(target, status string) {
	if m == nil {
		return
	}
	m.ExternalCalls.WithLabelValues(target, status).Inc()
}

// ObserveDigestRun records one digest generation. Nil-safe.
func (m *Metrics) ObserveDigestRun(trigger, status string) {
	if m == nil {
		return
	}
	m.DigestRunsTotal.WithLabelValues(trigger, status).Inc()
}
