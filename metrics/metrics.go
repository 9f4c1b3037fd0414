// Package metrics exposes session and dispatch counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samaelod/fixdesk/types"
)

const namespace = "fixdesk"

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	Messages        *prometheus.CounterVec
	SendAttempts    *prometheus.CounterVec
	PendingSends    prometheus.Gauge
	ConnectionState prometheus.Gauge
	Connects        *prometheus.CounterVec
	Sequence        *prometheus.GaugeVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "messages_total",
				Help:      "Application messages seen, by direction and message type",
			},
			[]string{"direction", "msg_type"},
		),
		SendAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "send_attempts_total",
				Help:      "Engine send attempts made by the dispatcher",
			},
			[]string{"result"},
		),
		PendingSends: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "pending_messages",
				Help:      "Outbound messages waiting for an active session",
			},
		),
		ConnectionState: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "connection_state",
				Help:      "0 disconnected, 1 connecting, 2 connected",
			},
		),
		Connects: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "connect_attempts_total",
				Help:      "Connect attempts by role and outcome",
			},
			[]string{"role", "result"},
		),
		Sequence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "sequence_number",
				Help:      "Next expected sequence number per direction",
			},
			[]string{"direction"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Message(dir types.Direction, msgType string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(dir.String(), msgType).Inc()
}

// Attempt implements dispatch.Observer.
func (m *Metrics) Attempt(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.SendAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.PendingSends.Set(float64(n))
}

func (m *Metrics) State(s types.ConnectionState) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(s))
}

func (m *Metrics) Connect(role types.Role, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Connects.WithLabelValues(role.String(), result).Inc()
}

func (m *Metrics) SequencePair(p types.SequencePair) {
	if m == nil {
		return
	}
	m.Sequence.WithLabelValues(types.Inbound.String()).Set(float64(p.Inbound))
	m.Sequence.WithLabelValues(types.Outbound.String()).Set(float64(p.Outbound))
}
