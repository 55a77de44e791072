// File: listener/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral listener types.

package listener

import (
	"sync"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/endpoint"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/sockfd"
	"github.com/momentics/hioload-tcp/tlsserver"
)

// Session is what the factory builds for each accepted connection.
type Session interface {
	// AttachHandshake hands over the TLS state of a connection accepted on a
	// TLS listener. The session is not ready until the handshake completes.
	AttachHandshake(h *tlsserver.Handshake)
	Close() error
}

// SessionFactory takes ownership of an accepted non-blocking descriptor.
// It must return a non-nil session or an error.
type SessionFactory func(fd *sockfd.FD, peer endpoint.Endpoint) (Session, error)

// Config describes one listening socket.
type Config struct {
	// BindAddress is a numeric IPv4 or IPv6 address; names are not resolved.
	BindAddress string
	Port        int
	// TLS enables handshakes on accepted connections when non-nil.
	TLS     *tlsserver.Context
	Factory SessionFactory
	Logger  log.Logger
	Metrics *control.Metrics
}

// Listener is a bound, listening, non-blocking socket. TryAccept and Close
// may be called from different goroutines; TryAccept itself is meant to be
// driven by a single reactor goroutine.
type Listener struct {
	// mu keeps the descriptor number alive while a syscall uses it.
	mu      sync.RWMutex
	fd      *sockfd.FD
	addr    string
	tls     *tlsserver.Context
	factory SessionFactory
	log     log.Logger
	metrics *control.Metrics

	closeOnce sync.Once
	closeErr  error
}

// FD returns the listening descriptor, or -1 once closed.
func (l *Listener) FD() int {
	return l.fd.Int()
}

// Addr returns the configured bind address as host:port.
func (l *Listener) Addr() string {
	return l.addr
}

// TLS returns the shared TLS context, or nil for a plain listener.
func (l *Listener) TLS() *tlsserver.Context {
	return l.tls
}

// Close releases the listening descriptor exactly once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closeErr = l.fd.Close()
		l.mu.Unlock()
		l.log.Infof("Destroyed socket server on %s", l.addr)
	})
	return l.closeErr
}
