//go:build !linux
// +build !linux

// File: listener/listener_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package listener

import (
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/endpoint"
)

// Listen returns api.ErrNotSupported outside Linux.
func Listen(Config) (*Listener, error) {
	return nil, api.ErrNotSupported
}

func (l *Listener) TryAccept() (Session, error) {
	return nil, api.ErrNotSupported
}

func (l *Listener) LocalEndpoint() (endpoint.Endpoint, error) {
	return endpoint.Unknown(), api.ErrNotSupported
}
