//go:build linux
// +build linux

package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/internal/testcert"
	"github.com/momentics/hioload-tcp/session"
)

// recorder echoes like EchoHandler and reports lifecycle events.
type recorder struct {
	EchoHandler
	ready  chan *session.Conn
	closed chan error
}

func newRecorder() *recorder {
	return &recorder{ready: make(chan *session.Conn, 16), closed: make(chan error, 16)}
}

func (r *recorder) OnReady(c *session.Conn)             { r.ready <- c }
func (r *recorder) OnClose(_ *session.Conn, err error) { r.closed <- err }

type harness struct {
	srv     *Server
	metrics *control.Metrics
	probes  *control.DebugProbes
	cancel  context.CancelFunc
	done    chan error
}

func start(t *testing.T, cfg Config, h Handler) *harness {
	t.Helper()
	m := control.NewMetrics(prometheus.NewRegistry())
	dp := control.NewDebugProbes()
	prof := control.NewProfileDepository()
	prof.Start()
	srv, err := New(cfg,
		WithLogger(log.Discard()),
		WithHandler(h),
		WithMetrics(m),
		WithDebugProbes(dp),
		WithProfiling(prof),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hs := &harness{srv: srv, metrics: m, probes: dp, cancel: cancel, done: make(chan error, 1)}
	go func() { hs.done <- srv.Run(ctx) }()
	t.Cleanup(func() { hs.stop(t) })
	return hs
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func (h *harness) addr(t *testing.T, i int) string {
	t.Helper()
	ep, err := h.srv.Listeners()[i].LocalEndpoint()
	require.NoError(t, err)
	return ep.String()
}

func tlsListener(t *testing.T) ListenerConfig {
	cert := testcert.Write(t, t.TempDir(), "server", x509.ExtKeyUsageServerAuth)
	return ListenerConfig{BindAddress: "127.0.0.1", CertFile: cert.CertPath, KeyFile: cert.KeyPath}
}

func echo(t *testing.T, c net.Conn, msg string) {
	t.Helper()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := c.Write([]byte(msg))
	require.NoError(t, err)
	got := make([]byte, len(msg))
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	assert.Equal(t, msg, string(got))
}

func waitReady(t *testing.T, r *recorder) *session.Conn {
	t.Helper()
	select {
	case c := <-r.ready:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("session never became ready")
		return nil
	}
}

func TestServer_PlainEcho(t *testing.T) {
	rec := newRecorder()
	h := start(t, Config{Listeners: []ListenerConfig{{BindAddress: "127.0.0.1"}}}, rec)

	c, err := net.Dial("tcp", h.addr(t, 0))
	require.NoError(t, err)
	defer c.Close()

	conn := waitReady(t, rec)
	assert.False(t, conn.Secure())
	echo(t, c, "hello")
	echo(t, c, "again")

	require.Eventually(t, func() bool { return len(h.srv.Sessions()) == 1 }, 2*time.Second, 10*time.Millisecond)
	info := h.srv.Sessions()[0]
	assert.Equal(t, conn.ID(), info.ID)
	assert.False(t, info.Secure)

	require.NoError(t, c.Close())
	select {
	case err := <-rec.closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}
	require.Eventually(t, func() bool { return len(h.srv.Sessions()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_TLSEchoAcrossWorkers(t *testing.T) {
	rec := newRecorder()
	h := start(t, Config{
		Workers:    2,
		PinWorkers: true,
		Listeners: []ListenerConfig{{BindAddress: "127.0.0.1"}, tlsListener(t)},
	}, rec)

	plain, err := net.Dial("tcp", h.addr(t, 0))
	require.NoError(t, err)
	defer plain.Close()
	secure, err := tls.Dial("tcp", h.addr(t, 1), &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, err)
	defer secure.Close()

	echo(t, plain, "plain")
	echo(t, secure, "secure")

	seen := map[bool]bool{}
	seen[waitReady(t, rec).Secure()] = true
	seen[waitReady(t, rec).Secure()] = true
	assert.Equal(t, map[bool]bool{true: true, false: true}, seen)

	snap := h.metrics.GetSnapshot()
	assert.Equal(t, 1.0, snap["hioload_tcp_handshakes_total{listener=127.0.0.1:0,result=established}"])
	assert.Equal(t, 2.0, snap["hioload_tcp_sessions_active"])

	state := h.probes.DumpState()
	assert.Len(t, state["server.listeners"], 2)
	assert.Contains(t, state, "worker.0.sessions")
	assert.Contains(t, state, "worker.1.sessions")
}

func TestServer_GarbageHandshakeNeverReady(t *testing.T) {
	rec := newRecorder()
	h := start(t, Config{Listeners: []ListenerConfig{tlsListener(t)}}, rec)

	c, err := net.Dial("tcp", h.addr(t, 0))
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	// The server drops the connection.
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = io.Copy(io.Discard, c)
	if ne, ok := err.(net.Error); ok {
		require.False(t, ne.Timeout(), "server kept the connection open")
	}

	select {
	case <-rec.ready:
		t.Fatal("failed handshake announced as ready")
	default:
	}
	require.Eventually(t, func() bool {
		return h.metrics.GetSnapshot()["hioload_tcp_handshakes_total{listener=127.0.0.1:0,result=failed}"] == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownClosesEverything(t *testing.T) {
	rec := newRecorder()
	h := start(t, Config{Listeners: []ListenerConfig{{BindAddress: "127.0.0.1"}}}, rec)

	c, err := net.Dial("tcp", h.addr(t, 0))
	require.NoError(t, err)
	defer c.Close()
	waitReady(t, rec)

	l := h.srv.Listeners()[0]
	h.stop(t)

	assert.Equal(t, -1, l.FD())
	select {
	case err := <-rec.closed:
		assert.ErrorIs(t, err, api.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("OnClose not called at shutdown")
	}
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, h.srv.Run(context.Background()), ErrAlreadyRunning)
}

func TestNew_ClosesPartialListeners(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	_, err = New(Config{Listeners: []ListenerConfig{
		{BindAddress: "127.0.0.1", Port: port},
		{BindAddress: "127.0.0.1", CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"},
	}}, WithLogger(log.Discard()))
	require.Error(t, err)
	assert.True(t, api.IsCode(err, api.ErrCodeConfig))

	again, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err, "first listener released")
	_ = again.Close()
}

func TestNew_RejectsHalfTLSConfig(t *testing.T) {
	cert := testcert.Write(t, t.TempDir(), "server", x509.ExtKeyUsageServerAuth)
	tests := []struct {
		name string
		lc   ListenerConfig
	}{
		{"key only", ListenerConfig{BindAddress: "127.0.0.1", KeyFile: cert.KeyPath}},
		{"cert only", ListenerConfig{BindAddress: "127.0.0.1", CertFile: cert.CertPath}},
		{"client CA without TLS", ListenerConfig{BindAddress: "127.0.0.1", ClientCAFile: cert.CertPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := New(Config{Listeners: []ListenerConfig{tt.lc}}, WithLogger(log.Discard()))
			require.Error(t, err)
			assert.Nil(t, srv)
			assert.True(t, api.IsCode(err, api.ErrCodeConfig))
		})
	}
}

func TestNew_NoListeners(t *testing.T) {
	_, err := New(Config{}, WithLogger(log.Discard()))
	assert.True(t, api.IsCode(err, api.ErrCodeConfig))
}
