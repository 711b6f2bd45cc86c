package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the server's operational counters. A fresh registry is
// created per server so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	activeConns      prometheus.Gauge
	activeRooms      prometheus.Gauge
	persistedTotal   prometheus.Counter
	deliveryFailures prometheus.Counter
	historyReplays   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomchat_active_connections",
			Help: "Connections currently registered in a session table.",
		}),
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roomchat_active_rooms",
			Help: "Rooms currently live in the hub.",
		}),
		persistedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_broadcasts_persisted_total",
			Help: "Broadcast records appended to the history log.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_delivery_failures_total",
			Help: "Sends that failed and removed a session.",
		}),
		historyReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_history_replayed_total",
			Help: "History records enqueued for new joiners.",
		}),
	}
}

func (m *Metrics) ConnOpened() { m.activeConns.Inc() }
func (m *Metrics) ConnClosed() { m.activeConns.Dec() }
func (m *Metrics) RoomOpened() { m.activeRooms.Inc() }
func (m *Metrics) RoomClosed() { m.activeRooms.Dec() }

func (m *Metrics) BroadcastPersisted() { m.persistedTotal.Inc() }
func (m *Metrics) DeliveryFailed()     { m.deliveryFailures.Inc() }

func (m *Metrics) HistoryReplayed(n int) {
	m.historyReplays.Add(float64(n))
}

// Handler serves the Prometheus scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
