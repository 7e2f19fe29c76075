package canvas

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveViewers      prometheus.Gauge
	SessionsCreated    prometheus.Counter
	WritesTotal        *prometheus.CounterVec
	ElementsBuilt      *prometheus.CounterVec
	DroppedConnections prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActiveViewers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "whiteboard_active_viewers",
				Help: "Current number of live stream subscribers",
			}),
			SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "whiteboard_sessions_created_total",
				Help: "Total number of sessions created",
			}),
			WritesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "whiteboard_writes_total",
				Help: "Total number of element writes by operation",
			}, []string{"op"}),
			ElementsBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "whiteboard_elements_built_total",
				Help: "Total number of elements synthesized by builders",
			}, []string{"kind"}),
			DroppedConnections: promauto.NewCounter(prometheus.CounterOpts{
				Name: "whiteboard_dropped_connections_total",
				Help: "Diagram connections dropped because an endpoint did not resolve",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) ViewerConnected() {
	if m == nil || m.ActiveViewers == nil {
		return
	}
	m.ActiveViewers.Inc()
}

func (m *Metrics) ViewerDisconnected() {
	if m == nil || m.ActiveViewers == nil {
		return
	}
	m.ActiveViewers.Dec()
}

func (m *Metrics) RecordSessionCreated() {
	if m == nil || m.SessionsCreated == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordWrite counts one write by stream message type.
func (m *Metrics) RecordWrite(op string) {
	if m == nil || m.WritesTotal == nil {
		return
	}
	m.WritesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordBuilt(kind string, n int) {
	if m == nil || m.ElementsBuilt == nil || n <= 0 {
		return
	}
	m.ElementsBuilt.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RecordDroppedConnections(n int) {
	if m == nil || m.DroppedConnections == nil || n <= 0 {
		return
	}
	m.DroppedConnections.Add(float64(n))
}
