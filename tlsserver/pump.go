// File: tlsserver/pump.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory transport between a *tls.Conn and a non-blocking descriptor.

package tlsserver

import (
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/sockfd"
)

// pump is the net.Conn handed to crypto/tls.
//
// While handshaking, Read is called from the helper goroutine: it parks on
// the parked channel and waits for Advance to deliver ciphertext through in.
// The two goroutines hand control back and forth, so pending and out are
// never touched concurrently.
//
// Once the handshake is done the pump switches to direct mode and Read does
// a non-blocking read on the descriptor from the caller's goroutine.
type pump struct {
	fd *sockfd.FD

	in     chan []byte
	parked chan struct{}
	closed chan struct{}
	once   sync.Once

	pending []byte
	out     []byte
	direct  bool
}

// wouldBlock satisfies net.Error with Temporary() true so crypto/tls does
// not latch it as a permanent read error.
type wouldBlock struct{}

func (wouldBlock) Error() string   { return api.ErrWouldBlock.Error() }
func (wouldBlock) Timeout() bool   { return true }
func (wouldBlock) Temporary() bool { return true }
func (wouldBlock) Unwrap() error   { return api.ErrWouldBlock }

func newPump(fd *sockfd.FD) *pump {
	return &pump{
		fd:     fd,
		in:     make(chan []byte),
		parked: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (p *pump) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		if p.direct {
			return p.recv(b)
		}
		select {
		case p.parked <- struct{}{}:
		case <-p.closed:
			return 0, net.ErrClosed
		}
		select {
		case data := <-p.in:
			if len(data) == 0 {
				return 0, io.EOF
			}
			p.pending = data
		case <-p.closed:
			return 0, net.ErrClosed
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write queues ciphertext; flush moves it to the socket.
func (p *pump) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, net.ErrClosed
	default:
	}
	p.out = append(p.out, b...)
	return len(b), nil
}

// recv performs one non-blocking read on the descriptor.
func (p *pump) recv(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd.Int(), b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, wouldBlock{}
		case err != nil:
			return 0, err
		case n == 0 && len(b) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// flush writes queued ciphertext until the socket buffer fills up.
func (p *pump) flush() error {
	for len(p.out) > 0 {
		n, err := unix.Write(p.fd.Int(), p.out)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return err
		}
		p.out = p.out[n:]
	}
	p.out = nil
	return nil
}

func (p *pump) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pump) LocalAddr() net.Addr {
	sa, err := unix.Getsockname(p.fd.Int())
	if err != nil {
		return &net.TCPAddr{}
	}
	return tcpAddr(sa)
}

func (p *pump) RemoteAddr() net.Addr {
	sa, err := unix.Getpeername(p.fd.Int())
	if err != nil {
		return &net.TCPAddr{}
	}
	return tcpAddr(sa)
}

// Deadlines do not apply: nothing in the pump blocks on the socket.
func (p *pump) SetDeadline(time.Time) error      { return nil }
func (p *pump) SetReadDeadline(time.Time) error  { return nil }
func (p *pump) SetWriteDeadline(time.Time) error { return nil }

func tcpAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)))
	case *unix.SockaddrInet6:
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)))
	default:
		return &net.TCPAddr{}
	}
}
