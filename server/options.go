// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/log"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the logger shared by listeners, handshakes and workers.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithHandler installs the application callbacks. The default is EchoHandler.
func WithHandler(h Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithMetrics records accept, handshake and session counters.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithProfiling attaches a depository; each worker gets its own Profiler.
func WithProfiling(d *control.ProfileDepository) Option {
	return func(s *Server) {
		s.profiles = d
	}
}

// WithDebugProbes registers listener and session probes on dp.
func WithDebugProbes(dp *control.DebugProbes) Option {
	return func(s *Server) {
		s.probes = dp
	}
}
