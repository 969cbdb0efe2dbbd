// ABOUTME: Prometheus instruments for the authoritative session server
// ABOUTME: Each Metrics owns its registry so several servers can coexist in one process
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the server.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions prometheus.Gauge
	ConnectedPeers prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec
	CatchUpSize    prometheus.Histogram
	DroppedPeers   prometheus.Counter
	GroupVolume    *prometheus.GaugeVec
}

// NewMetrics builds the instruments and registers them on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently held by the registry.",
		}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Number of dependent peers connected over websocket.",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		CatchUpSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catchup_sessions",
			Help:      "Sessions re-announced per catch-up request.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		DroppedPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_peers_total",
			Help:      "Peers disconnected because their send buffer was full.",
		}),
		GroupVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "group_volume",
			Help:      "Current volume per session group.",
		}, []string{"group"}),
	}

	reg.MustRegister(
		m.ActiveSessions,
		m.ConnectedPeers,
		m.SessionEvents,
		m.WSMessages,
		m.CatchUpSize,
		m.DroppedPeers,
		m.GroupVolume,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
