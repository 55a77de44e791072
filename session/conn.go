// File: session/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn: descriptor ownership, handshake progress and non-blocking I/O.

package session

import (
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/endpoint"
	"github.com/momentics/hioload-tcp/listener"
	"github.com/momentics/hioload-tcp/sockfd"
	"github.com/momentics/hioload-tcp/tlsserver"
)

// State is the lifecycle stage of a Conn.
type State int

const (
	StateHandshaking State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the default listener.Session.
type Conn struct {
	id   uuid.UUID
	fd   *sockfd.FD
	peer endpoint.Endpoint
	hs   *tlsserver.Handshake

	state State
	steps int
	out   []byte

	closeOnce sync.Once
	closeErr  error

	// Value is free for the application handler.
	Value any
}

var _ listener.Session = (*Conn)(nil)

// New takes ownership of fd.
func New(fd *sockfd.FD, peer endpoint.Endpoint) *Conn {
	return &Conn{
		id:   uuid.New(),
		fd:   fd,
		peer: peer,
	}
}

// Factory returns a listener.SessionFactory producing *Conn values.
func Factory() listener.SessionFactory {
	return func(fd *sockfd.FD, peer endpoint.Endpoint) (listener.Session, error) {
		return New(fd, peer), nil
	}
}

// AttachHandshake binds the TLS state created by the listener.
func (c *Conn) AttachHandshake(h *tlsserver.Handshake) {
	c.hs = h
}

func (c *Conn) ID() uuid.UUID                   { return c.id }
func (c *Conn) FD() int                         { return c.fd.Int() }
func (c *Conn) Peer() endpoint.Endpoint         { return c.peer }
func (c *Conn) State() State                    { return c.state }
func (c *Conn) Handshake() *tlsserver.Handshake { return c.hs }

// Secure reports whether the connection carries TLS.
func (c *Conn) Secure() bool {
	return c.hs != nil
}

// Steps is the number of Advance calls made so far.
func (c *Conn) Steps() int {
	return c.steps
}

// Advance moves the connection towards the ready state. Plain connections
// are ready immediately. A non-nil error is terminal; close the Conn.
func (c *Conn) Advance() (api.Step, error) {
	switch c.state {
	case StateReady:
		return api.StepDone, nil
	case StateClosed:
		return 0, api.ErrClosed
	}
	c.steps++
	if c.hs == nil {
		c.state = StateReady
		return api.StepDone, nil
	}
	step, err := c.hs.Advance()
	if err != nil {
		return 0, err
	}
	if step == api.StepDone {
		c.state = StateReady
	}
	return step, nil
}

// Interest is the readiness set the reactor should watch right now.
func (c *Conn) Interest() api.EventType {
	ev := api.EventRead
	if c.Pending() > 0 {
		ev |= api.EventWrite
	}
	return ev
}

// Read returns decrypted (or plain) bytes. It returns api.ErrWouldBlock when
// nothing is available and io.EOF once the peer has closed.
func (c *Conn) Read(b []byte) (int, error) {
	switch c.state {
	case StateHandshaking:
		return 0, api.ErrWouldBlock
	case StateClosed:
		return 0, api.ErrClosed
	}
	if c.hs != nil {
		return c.hs.Read(b)
	}
	for {
		n, err := unix.Read(c.fd.Int(), b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, api.ErrWouldBlock
		case err != nil:
			return 0, api.SystemError("read", err)
		case n == 0 && len(b) > 0:
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write queues b and flushes as much as the socket accepts. The remainder
// goes out on the next Flush.
func (c *Conn) Write(b []byte) (int, error) {
	if c.state != StateReady {
		return 0, api.NewError(api.ErrCodeInternal, "write on a session that is not ready").
			WithContext("state", c.state.String())
	}
	if c.hs != nil {
		return c.hs.Write(b)
	}
	c.out = append(c.out, b...)
	if err := c.Flush(); err != nil && !errors.Is(err, api.ErrWouldBlock) {
		return len(b), err
	}
	return len(b), nil
}

// Flush drains queued output, returning api.ErrWouldBlock when the socket
// buffer is full.
func (c *Conn) Flush() error {
	if c.hs != nil {
		return c.hs.Flush()
	}
	for len(c.out) > 0 {
		n, err := unix.Write(c.fd.Int(), c.out)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return api.ErrWouldBlock
		case err != nil:
			return api.SystemError("write", err)
		}
		c.out = c.out[n:]
	}
	c.out = nil
	return nil
}

// Pending is the number of queued outbound bytes.
func (c *Conn) Pending() int {
	if c.hs != nil {
		return c.hs.Pending()
	}
	return len(c.out)
}

// Close abandons any in-flight handshake and then releases the descriptor.
// Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.hs != nil {
			_ = c.hs.Close()
		}
		c.state = StateClosed
		c.out = nil
		c.closeErr = c.fd.Close()
	})
	return c.closeErr
}
