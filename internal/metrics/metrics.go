// Package metrics exposes signaling counters in the prometheus text format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sfu_signal"

type Metrics struct {
	reg *prometheus.Registry

	sessions   prometheus.Gauge
	transports *prometheus.GaugeVec
	producers  *prometheus.GaugeVec
	consumers  prometheus.Gauge
	messages   *prometheus.CounterVec
	errors     *prometheus.CounterVec
	closes     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions", Help: "Open signaling sessions.",
		}),
		transports: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "transports", Help: "Open WebRTC transports by role.",
		}, []string{"role"}),
		producers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "producers", Help: "Active producers by kind.",
		}, []string{"kind"}),
		consumers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "consumers", Help: "Open consumers.",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total", Help: "Inbound signaling messages by type.",
		}, []string{"type"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Error responses by kind.",
		}, []string{"kind"}),
		closes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "closes_total", Help: "Closed media objects by object and reason.",
		}, []string{"object", "reason"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) TransportOpened(role string) {
	if m != nil {
		m.transports.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) TransportClosed(role, reason string) {
	if m != nil {
		m.transports.WithLabelValues(role).Dec()
		m.closes.WithLabelValues("transport", reason).Inc()
	}
}

func (m *Metrics) ProducerOpened(kind string) {
	if m != nil {
		m.producers.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ProducerClosed(kind, reason string) {
	if m != nil {
		m.producers.WithLabelValues(kind).Dec()
		m.closes.WithLabelValues("producer", reason).Inc()
	}
}

func (m *Metrics) ConsumerOpened() {
	if m != nil {
		m.consumers.Inc()
	}
}

func (m *Metrics) ConsumerClosed(reason string) {
	if m != nil {
		m.consumers.Dec()
		m.closes.WithLabelValues("consumer", reason).Inc()
	}
}

func (m *Metrics) Message(typ string) {
	if m != nil {
		m.messages.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) Error(kind string) {
	if m != nil {
		m.errors.WithLabelValues(kind).Inc()
	}
}
