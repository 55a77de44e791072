// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics for listeners, handshakes and sessions.
// Backed by prometheus collectors registered on a caller-supplied registry.

package control

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hioload_tcp"

// Handshake outcomes used as the result label.
const (
	HandshakeEstablished = "established"
	HandshakeFailed      = "failed"
	HandshakeAbandoned   = "abandoned"
)

// Metrics holds the connection-establishment collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	accepted       *prometheus.CounterVec
	acceptErrors   *prometheus.CounterVec
	handshakes     *prometheus.CounterVec
	handshakeSteps prometheus.Histogram
	sessions       prometheus.Gauge
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		accepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepted_total",
			Help:      "Connections accepted per listener",
		}, []string{"listener"}),
		acceptErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Failed accept attempts per listener",
		}, []string{"listener"}),
		handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "TLS handshakes by outcome",
		}, []string{"listener", "result"}),
		handshakeSteps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_steps",
			Help:      "Readiness-driven Advance calls per completed handshake",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open sessions",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Accepted(listener string) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(listener).Inc()
}

func (m *Metrics) AcceptFailed(listener string) {
	if m == nil {
		return
	}
	m.acceptErrors.WithLabelValues(listener).Inc()
}

// Handshake records a terminal handshake outcome and, for established
// connections, the number of Advance calls it took.
func (m *Metrics) Handshake(listener, result string, steps int) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(listener, result).Inc()
	if result == HandshakeEstablished {
		m.handshakeSteps.Observe(float64(steps))
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// GetSnapshot flattens counters and gauges into name{labels} -> value, for
// logging at shutdown.
func (m *Metrics) GetSnapshot() map[string]float64 {
	out := make(map[string]float64)
	if m == nil {
		return out
	}
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var v float64
			switch {
			case metric.GetCounter() != nil:
				v = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				v = metric.GetGauge().GetValue()
			default:
				continue
			}
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)
			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			out[key] = v
		}
	}
	return out
}
