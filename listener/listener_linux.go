//go:build linux
// +build linux

// File: listener/listener_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux bind/listen/accept4 implementation.

package listener

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/endpoint"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/sockfd"
)

// Listen parses the bind address, creates a non-blocking stream socket with
// SO_REUSEADDR, binds it and starts listening with the maximum backlog. The
// descriptor is closed on every failure path.
func Listen(cfg Config) (*Listener, error) {
	l := log.Or(cfg.Logger)
	if cfg.Factory == nil {
		return nil, api.NewError(api.ErrCodeInternal, "nil session factory")
	}
	if cfg.Port < 0 || cfg.Port > 0xFFFF {
		return nil, api.NewError(api.ErrCodeConfig, "port out of range").WithContext("port", cfg.Port)
	}

	addr := net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
	kind := ""
	if cfg.TLS != nil {
		kind = "TLS "
	}
	l.Infof("Creating %ssocket server on %s...", kind, addr)

	sa, family, err := resolve(cfg.BindAddress, cfg.Port)
	if err != nil {
		l.WithError(err).Errorf("Unknown address format: %s", cfg.BindAddress)
		return nil, err
	}

	raw, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, systemFailure(l, "socket", addr, err)
	}
	fd := sockfd.New(raw)
	ok := false
	defer func() {
		if !ok {
			_ = fd.Close()
		}
	}()

	if err := unix.SetsockoptInt(raw, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, systemFailure(l, "setsockopt SO_REUSEADDR", addr, err)
	}
	if err := unix.SetNonblock(raw, true); err != nil {
		return nil, systemFailure(l, "set non-blocking", addr, err)
	}
	if err := unix.Bind(raw, sa); err != nil {
		return nil, systemFailure(l, "bind", addr, err)
	}
	if err := unix.Listen(raw, unix.SOMAXCONN); err != nil {
		return nil, systemFailure(l, "listen", addr, err)
	}

	ok = true
	return &Listener{
		fd:      fd,
		addr:    addr,
		tls:     cfg.TLS,
		factory: cfg.Factory,
		log:     l.WithField("listener", addr),
		metrics: cfg.Metrics,
	}, nil
}

// resolve parses text as IPv4, then IPv6. No name resolution happens.
func resolve(text string, port int) (unix.Sockaddr, int, error) {
	a, err := netip.ParseAddr(text)
	if err != nil {
		return nil, 0, api.NewError(api.ErrCodeConfig, "unknown address format").
			WithContext("address", text).Wrap(err)
	}
	if a.Is4() {
		return &unix.SockaddrInet4{Port: port, Addr: a.As4()}, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: port, Addr: a.As16()}
	if zone := a.Zone(); zone != "" {
		id, err := zoneID(zone)
		if err != nil {
			return nil, 0, api.NewError(api.ErrCodeConfig, "unknown IPv6 zone").
				WithContext("zone", zone).Wrap(err)
		}
		sa.ZoneId = id
	}
	return sa, unix.AF_INET6, nil
}

func zoneID(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, err
	}
	return uint32(ifi.Index), nil
}

func systemFailure(l log.Logger, op, addr string, err error) error {
	e := api.SystemError(op, err).WithContext("addr", addr)
	l.WithError(err).Errorf("%s failed on %s", op, addr)
	return e
}

// TryAccept performs one non-blocking accept.
//
// It returns (nil, nil) when no connection is pending and api.ErrClosed
// after Close. Any other accept
// failure is an ErrCodeSystem error for this attempt only; the listener stays
// usable. On success the factory owns the descriptor; with TLS configured a
// fresh handshake is attached to the returned session.
func (l *Listener) TryAccept() (Session, error) {
	l.mu.RLock()
	if l.fd.Closed() {
		l.mu.RUnlock()
		return nil, api.ErrClosed
	}
	raw, sa, err := accept(l.fd.Int())
	l.mu.RUnlock()
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil
		}
		l.metrics.AcceptFailed(l.addr)
		e := api.SystemError("accept", err).WithContext("listener", l.addr)
		l.log.WithError(err).Error("accept failed")
		return nil, e
	}
	conn := sockfd.New(raw)

	peer, err := endpoint.FromSockaddr(sa)
	if err != nil {
		l.log.WithError(err).Warn("Could not decode peer address")
		peer = endpoint.Unknown()
	}

	s, err := l.factory(conn, peer)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("session factory: %w", err)
	}
	if s == nil {
		_ = conn.Close()
		l.log.Warn("Session factory returned a nil session")
		return nil, api.NewError(api.ErrCodeInternal, "null session").WithContext("peer", peer.String())
	}

	if l.tls != nil {
		l.log.Debug("Waiting for TLS handshake...")
		s.AttachHandshake(l.tls.NewHandshake(conn))
	}
	l.metrics.Accepted(l.addr)
	l.log.Infof("Client %s has connected.", peer)
	return s, nil
}

func accept(fd int) (int, unix.Sockaddr, error) {
	for {
		nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		// The pending connection went away, or a signal interrupted us: retry.
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		return nfd, sa, err
	}
}

// LocalEndpoint returns the address the kernel actually bound, which
// differs from Addr when port 0 was requested.
func (l *Listener) LocalEndpoint() (endpoint.Endpoint, error) {
	l.mu.RLock()
	if l.fd.Closed() {
		l.mu.RUnlock()
		return endpoint.Unknown(), api.ErrClosed
	}
	sa, err := unix.Getsockname(l.fd.Int())
	l.mu.RUnlock()
	if err != nil {
		return endpoint.Unknown(), api.SystemError("getsockname", err)
	}
	return endpoint.FromSockaddr(sa)
}
