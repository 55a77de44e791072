package control

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Accepted("127.0.0.1:80")
	m.Accepted("127.0.0.1:80")
	m.AcceptFailed("127.0.0.1:80")
	m.Handshake("127.0.0.1:80", HandshakeEstablished, 3)
	m.Handshake("127.0.0.1:80", HandshakeFailed, 2)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.accepted.WithLabelValues("127.0.0.1:80")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acceptErrors.WithLabelValues("127.0.0.1:80")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))

	snap := m.GetSnapshot()
	assert.Equal(t, 2.0, snap["hioload_tcp_accepted_total{listener=127.0.0.1:80}"])
	assert.Equal(t, 1.0, snap["hioload_tcp_handshakes_total{listener=127.0.0.1:80,result=failed}"])
	assert.Equal(t, 1.0, snap["hioload_tcp_sessions_active"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Accepted("x")
	m.AcceptFailed("x")
	m.Handshake("x", HandshakeFailed, 1)
	m.SessionOpened()
	m.SessionClosed()
	assert.Empty(t, m.GetSnapshot())
	assert.Nil(t, m.Registry())
}
