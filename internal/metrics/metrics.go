// Package metrics exposes orchestration telemetry in the Prometheus
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restreamer"

// Metrics owns a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	relays   *prometheus.GaugeVec
	starts   *prometheus.CounterVec
	failures *prometheus.CounterVec
	restarts *prometheus.CounterVec
	toggles  *prometheus.CounterVec
	reloads  *prometheus.CounterVec
	identity prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		relays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relays",
			Help:      "Configured relays by session state.",
		}, []string{"state"}),
		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_starts_total",
			Help:      "Relay sessions started.",
		}, []string{"relay"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_failures_total",
			Help:      "Relay sessions that failed or could not start.",
		}, []string{"relay"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_restarts_scheduled_total",
			Help:      "Restart timers armed after a failure.",
		}, []string{"relay"}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_toggles_total",
			Help:      "Runtime enable/disable changes applied.",
		}, []string{"action"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Relays file loads by result.",
		}, []string{"result"}),
		identity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identity_record_entries",
			Help:      "Entries written to the durable identity record.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.relays, m.starts, m.failures, m.restarts, m.toggles, m.reloads, m.identity,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RelayStarted(id string) {
	m.starts.WithLabelValues(id).Inc()
}

func (m *Metrics) RelayFailed(id string) {
	m.failures.WithLabelValues(id).Inc()
}

func (m *Metrics) RestartScheduled(id string) {
	m.restarts.WithLabelValues(id).Inc()
}

func (m *Metrics) ChangeApplied(_ string, enabled bool) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	m.toggles.WithLabelValues(action).Inc()
}

func (m *Metrics) StateCounts(running, pending, stopped int) {
	m.relays.WithLabelValues("running").Set(float64(running))
	m.relays.WithLabelValues("restart_pending").Set(float64(pending))
	m.relays.WithLabelValues("stopped").Set(float64(stopped))
}

// ReloadFinished counts one relays file load.
func (m *Metrics) ReloadFinished(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// IdentitiesSaved records the size of the last written identity record.
func (m *Metrics) IdentitiesSaved(n int) {
	m.identity.Set(float64(n))
}
