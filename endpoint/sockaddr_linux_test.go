//go:build linux

package endpoint_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/endpoint"
)

// storeBE writes v into *p in network byte order.
func storeBE(p *uint16, v uint16) {
	b := (*[2]byte)(unsafe.Pointer(p))
	b[0], b[1] = byte(v>>8), byte(v)
}

func TestFromRaw_IPv4(t *testing.T) {
	var raw unix.RawSockaddrAny
	sin := (*unix.RawSockaddrInet4)(unsafe.Pointer(&raw))
	sin.Family = unix.AF_INET
	sin.Addr = [4]byte{127, 0, 0, 1}
	storeBE(&sin.Port, 8080)

	e, err := endpoint.FromRaw(&raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", e.IP())
	assert.Equal(t, uint16(8080), e.Port())
}

func TestFromRaw_IPv6(t *testing.T) {
	var raw unix.RawSockaddrAny
	sin6 := (*unix.RawSockaddrInet6)(unsafe.Pointer(&raw))
	sin6.Family = unix.AF_INET6
	sin6.Addr[15] = 1
	storeBE(&sin6.Port, 443)

	e, err := endpoint.FromRaw(&raw)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:443", e.String())
}

func TestFromRaw_UnknownFamily(t *testing.T) {
	var raw unix.RawSockaddrAny
	raw.Addr.Family = unix.AF_UNIX

	e, err := endpoint.FromRaw(&raw)
	require.Error(t, err)
	assert.True(t, api.IsCode(err, api.ErrCodeProtocol))
	assert.Equal(t, endpoint.Endpoint{}, e)

	_, err = endpoint.FromRaw(nil)
	assert.True(t, api.IsCode(err, api.ErrCodeProtocol))
}

func TestFromSockaddr(t *testing.T) {
	e, err := endpoint.FromSockaddr(&unix.SockaddrInet4{Addr: [4]byte{192, 168, 1, 2}, Port: 9000})
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.2:9000", e.String())

	_, err = endpoint.FromSockaddr(&unix.SockaddrUnix{Name: "/tmp/x"})
	assert.True(t, api.IsCode(err, api.ErrCodeProtocol))
}
