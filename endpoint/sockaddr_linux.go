//go:build linux
// +build linux

// File: endpoint/sockaddr_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decoding of kernel socket address structures.

package endpoint

import (
	"encoding/binary"
	"net/netip"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

// FromSockaddr converts a decoded socket address as returned by accept(2).
func FromSockaddr(sa unix.Sockaddr) (Endpoint, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)))
	case *unix.SockaddrInet6:
		return FromAddrPort(netip.AddrPortFrom(withZone(netip.AddrFrom16(sa.Addr), sa.ZoneId), uint16(sa.Port)))
	default:
		return Endpoint{}, api.NewError(api.ErrCodeProtocol, "unknown address family").
			WithContext("sockaddr", sa)
	}
}

// FromRaw converts a raw kernel sockaddr; the port is stored in network
// byte order.
func FromRaw(raw *unix.RawSockaddrAny) (Endpoint, error) {
	if raw == nil {
		return Endpoint{}, api.NewError(api.ErrCodeProtocol, "nil socket address")
	}
	switch raw.Addr.Family {
	case unix.AF_INET:
		sin := (*unix.RawSockaddrInet4)(unsafe.Pointer(raw))
		return FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4(sin.Addr), loadBE16(&sin.Port)))
	case unix.AF_INET6:
		sin6 := (*unix.RawSockaddrInet6)(unsafe.Pointer(raw))
		addr := withZone(netip.AddrFrom16(sin6.Addr), sin6.Scope_id)
		return FromAddrPort(netip.AddrPortFrom(addr, loadBE16(&sin6.Port)))
	default:
		return Endpoint{}, api.NewError(api.ErrCodeProtocol, "unknown address family").
			WithContext("family", raw.Addr.Family)
	}
}

func loadBE16(p *uint16) uint16 {
	return binary.BigEndian.Uint16((*[2]byte)(unsafe.Pointer(p))[:])
}

func withZone(a netip.Addr, zone uint32) netip.Addr {
	if zone == 0 {
		return a
	}
	return a.WithZone(strconv.FormatUint(uint64(zone), 10))
}
