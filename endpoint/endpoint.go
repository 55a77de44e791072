// File: endpoint/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package endpoint implements the resolved IP+port value used to identify
// peers and bound addresses in logs.

package endpoint

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/momentics/hioload-tcp/api"
)

// IPCapacity is the size of the textual address buffer, including the
// terminator slot: INET6_ADDRSTRLEN.
const IPCapacity = 46

// Endpoint is an immutable IP+port pair. The zero value is an empty address
// with port 0; use Unknown for peers that are not resolved yet.
type Endpoint struct {
	ip   [IPCapacity]byte
	n    uint8
	port uint16
}

var unknown = func() Endpoint {
	e, _ := fromString("<unknown>", 0)
	return e
}()

// Unknown returns the process-wide placeholder for unresolved peers.
func Unknown() Endpoint {
	return unknown
}

// FromText validates and stores ip and port. Numeric addresses are kept in
// canonical form; any other text is kept verbatim. Text is never truncated.
func FromText(ip string, port int) (Endpoint, error) {
	if port < 0 || port > 0xFFFF {
		return Endpoint{}, api.NewError(api.ErrCodeValidation, "port out of range").
			WithContext("port", port)
	}
	// Capacity applies to the text as given, not its canonical form.
	if len(ip)+1 > IPCapacity {
		return Endpoint{}, api.NewError(api.ErrCodeValidation, "address too long").
			WithContext("ip", ip)
	}
	if a, err := netip.ParseAddr(ip); err == nil {
		ip = a.String()
	}
	return fromString(ip, uint16(port))
}

// FromAddrPort builds an Endpoint from an already parsed address.
func FromAddrPort(ap netip.AddrPort) (Endpoint, error) {
	if !ap.Addr().IsValid() {
		return Endpoint{}, api.NewError(api.ErrCodeProtocol, "invalid address")
	}
	return fromString(ap.Addr().String(), ap.Port())
}

func fromString(ip string, port uint16) (Endpoint, error) {
	if len(ip)+1 > IPCapacity {
		return Endpoint{}, api.NewError(api.ErrCodeValidation, "address too long").
			WithContext("ip", ip)
	}
	var e Endpoint
	e.n = uint8(copy(e.ip[:], ip))
	e.port = port
	return e, nil
}

// IP returns the textual address.
func (e Endpoint) IP() string {
	return string(e.ip[:e.n])
}

// Port returns the port in host byte order.
func (e Endpoint) Port() uint16 {
	return e.port
}

// AddrPort parses the stored text back into a netip.AddrPort. ok is false
// for non-numeric text such as the unknown placeholder.
func (e Endpoint) AddrPort() (ap netip.AddrPort, ok bool) {
	a, err := netip.ParseAddr(e.IP())
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(a, e.port), true
}

// IsUnknown reports whether e is the unresolved-peer placeholder.
func (e Endpoint) IsUnknown() bool {
	return e == unknown
}

// String formats host:port, bracketing IPv6 literals.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP(), strconv.Itoa(int(e.port)))
}
