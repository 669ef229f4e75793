package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates console counters on a private registry so tests can
// instantiate servers without global registration conflicts.
type Metrics struct {
	registry *prometheus.Registry

	OneShotQueries   prometheus.Counter
	StreamSessions   prometheus.Counter
	Fragments        prometheus.Counter
	ChannelErrors    prometheus.Counter
	ReconcileFetches prometheus.Counter
	AgentOnline      prometheus.Gauge
}

// NewMetrics builds and registers the console metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		OneShotQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmrconsole_oneshot_queries_total",
			Help: "One-shot /query fetches issued to the agent backend.",
		}),
		StreamSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmrconsole_stream_sessions_total",
			Help: "Streaming sessions opened against the agent backend.",
		}),
		Fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmrconsole_stream_fragments_total",
			Help: "Fragments received over streaming sessions.",
		}),
		ChannelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmrconsole_stream_channel_errors_total",
			Help: "Error events observed on streaming channels, benign or not.",
		}),
		ReconcileFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cmrconsole_reconcile_fetches_total",
			Help: "Reconciling one-shot fetches issued after stream teardown.",
		}),
		AgentOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cmrconsole_agent_online",
			Help: "Whether the last liveness probe saw the agent backend up.",
		}),
	}
	registry.MustRegister(
		m.OneShotQueries,
		m.StreamSessions,
		m.Fragments,
		m.ChannelErrors,
		m.ReconcileFetches,
		m.AgentOnline,
	)
	return m
}

// Handler exposes the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
