// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server configuration and the application callback contract.

package server

import (
	"time"

	"github.com/momentics/hioload-tcp/session"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Workers     int           // reactor goroutines; capped at the number of listeners
	PollTimeout time.Duration // upper bound on one reactor wait
	MaxEvents   int           // events drained per poll
	PinWorkers  bool          // bind each worker's OS thread to its own CPU
	Listeners   []ListenerConfig
}

// ListenerConfig describes one bind address. CertFile and KeyFile enable TLS
// and must be set together.
type ListenerConfig struct {
	BindAddress  string
	Port         int
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// DefaultConfig returns sensible defaults with no listeners.
func DefaultConfig() Config {
	return Config{
		Workers:     1,
		PollTimeout: 100 * time.Millisecond,
		MaxEvents:   128,
	}
}

// Handler receives session events on the owning worker goroutine. It must
// not block. A handler may Write to or Close the session it is handed.
type Handler interface {
	// OnReady fires once per session, after the TLS handshake for secure
	// listeners and right after accept for plain ones.
	OnReady(c *session.Conn)
	// OnData delivers bytes read from the session. data is only valid for
	// the duration of the call.
	OnData(c *session.Conn, data []byte)
	// OnClose fires for sessions that were announced with OnReady. err is
	// nil for an orderly close.
	OnClose(c *session.Conn, err error)
}

// EchoHandler writes every received chunk back to its sender.
type EchoHandler struct{}

func (EchoHandler) OnReady(*session.Conn) {}

func (EchoHandler) OnData(c *session.Conn, data []byte) {
	if _, err := c.Write(data); err != nil {
		_ = c.Close()
	}
}

func (EchoHandler) OnClose(*session.Conn, error) {}
