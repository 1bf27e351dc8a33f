// Package metrics exposes notification and push counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskhub/pkg/notification"
)

const namespace = "taskhub"

// Metrics implements notification.Recorder and owns its own registry.
type Metrics struct {
	reg *prometheus.Registry

	notifications *prometheus.CounterVec
	pushes        *prometheus.CounterVec
	dropped       *prometheus.CounterVec
}

// New creates Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Durable notifications by type and outcome.",
		}, []string{"type", "outcome"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Real-time pushes by event and outcome.",
		}, []string{"event", "outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_dropped_total",
			Help:      "Pushes dropped because a subscriber was behind.",
		}, []string{"event"}),
	}
	m.reg.MustRegister(
		m.notifications, m.pushes, m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Register adds extra collectors, such as a connection gauge.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Gauge registers a gauge whose value is read from fn on every scrape.
func (m *Metrics) Gauge(name, help string, fn func() float64) error {
	return m.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

func (m *Metrics) NotificationCreated(typ notification.Type) {
	m.notifications.WithLabelValues(string(typ), "created").Inc()
}

func (m *Metrics) NotificationFailed(typ notification.Type) {
	m.notifications.WithLabelValues(string(typ), "failed").Inc()
}

func (m *Metrics) PushSent(event string) { m.pushes.WithLabelValues(event, "sent").Inc() }

func (m *Metrics) PushThrottled(event string) { m.pushes.WithLabelValues(event, "throttled").Inc() }

func (m *Metrics) PushFailed(event string) { m.pushes.WithLabelValues(event, "failed").Inc() }

// PushDropped is meant for push.WithDropHook.
func (m *Metrics) PushDropped(event string) { m.dropped.WithLabelValues(event).Inc() }

var _ notification.Recorder = (*Metrics)(nil)
