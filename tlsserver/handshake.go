// File: tlsserver/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness-driven server handshake. Advance performs one step and reports
// whether the connection is established, needs the reactor to wait for a
// readiness direction, or has failed for good.

package tlsserver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/sockfd"
)

// State is the lifecycle stage of a Handshake.
type State int

const (
	StateCreated State = iota
	StateHandshaking
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// readChunk bounds one non-blocking read; a full TLS record fits.
const readChunk = 16<<10 + 512

// Handshake drives one server-side TLS handshake and, once established,
// carries the connection's application data. It must be used from a single
// goroutine at a time; the descriptor stays owned by the session.
type Handshake struct {
	fd   *sockfd.FD
	conn *tls.Conn
	pump *pump
	log  log.Logger

	state State
	err   error

	started  bool
	finished bool
	result   error
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	buf []byte
}

var _ api.Handshaker = (*Handshake)(nil)

var errNotBound = api.NewError(api.ErrCodeInternal, "handshake is not bound to a descriptor")

func newHandshake(c *Context, fd *sockfd.FD) *Handshake {
	p := newPump(fd)
	h := &Handshake{
		fd:    fd,
		pump:  p,
		conn:  tls.Server(p, c.config),
		log:   c.log.WithField("fd", fd.Int()),
		state: StateCreated,
		done:  make(chan struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	if !fd.Closed() {
		h.state = StateHandshaking
	}
	return h
}

// State returns the current lifecycle stage.
func (h *Handshake) State() State {
	return h.state
}

// Err returns the terminal error of a failed handshake.
func (h *Handshake) Err() error {
	return h.err
}

// Advance runs the handshake as far as the socket allows without blocking.
//
// StepDone means established. StepWantRead / StepWantWrite mean the caller
// must wait for that readiness and call Advance again. A non-nil error is
// terminal: the handshake is failed and the connection should be closed.
func (h *Handshake) Advance() (api.Step, error) {
	switch h.state {
	case StateEstablished:
		return api.StepDone, nil
	case StateFailed:
		return 0, h.err
	case StateCreated:
		return 0, errNotBound
	}

	if !h.started {
		h.started = true
		h.buf = make([]byte, readChunk)
		go h.run()
		h.wait()
	}

	for {
		if err := h.pump.flush(); err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				return api.StepWantWrite, nil
			}
			return 0, h.fail(err)
		}
		if h.finished {
			if h.result != nil {
				return 0, h.fail(h.result)
			}
			h.establish()
			return api.StepDone, nil
		}

		n, err := h.pump.recv(h.buf)
		switch {
		case errors.Is(err, api.ErrWouldBlock):
			return api.StepWantRead, nil
		case err == io.EOF:
			// Let the TLS state machine see the EOF; it fails on its own terms.
			h.feed(nil)
		case err != nil:
			return 0, h.fail(err)
		default:
			h.feed(h.buf[:n])
		}
	}
}

func (h *Handshake) run() {
	defer close(h.done)
	h.result = h.conn.HandshakeContext(h.ctx)
}

// wait returns once the helper either parks for more input or finishes.
func (h *Handshake) wait() {
	select {
	case <-h.pump.parked:
	case <-h.done:
		h.finished = true
	}
}

// feed hands ciphertext to the parked helper and waits for it to settle.
// An empty chunk signals EOF.
func (h *Handshake) feed(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	select {
	case h.pump.in <- chunk:
	case <-h.done:
		h.finished = true
		return
	}
	h.wait()
}

func (h *Handshake) establish() {
	h.state = StateEstablished
	h.pump.direct = true
	h.buf = nil
	st := h.conn.ConnectionState()
	h.log.Debugf("TLS handshake complete: version=%s cipher=%s",
		tls.VersionName(st.Version), tls.CipherSuiteName(st.CipherSuite))
}

func (h *Handshake) fail(cause error) error {
	// Best effort: deliver any alert the TLS stack queued.
	_ = h.pump.flush()
	h.state = StateFailed
	h.err = api.NewError(api.ErrCodeHandshake, "tls handshake failed").Wrap(cause)
	h.log.WithError(cause).Error("TLS handshake failed")
	h.abandon()
	return h.err
}

func (h *Handshake) abandon() {
	h.cancel()
	_ = h.pump.Close()
	h.buf = nil
}

// Read decrypts application data. It returns api.ErrWouldBlock while the
// handshake is pending or the socket has nothing to read yet, and the
// terminal error once the handshake has failed.
func (h *Handshake) Read(b []byte) (int, error) {
	switch h.state {
	case StateEstablished:
		return h.conn.Read(b)
	case StateFailed:
		return 0, h.err
	default:
		return 0, api.ErrWouldBlock
	}
}

// Write encrypts b and queues it; Flush sends it. Queued data is flushed
// opportunistically before Write returns.
func (h *Handshake) Write(b []byte) (int, error) {
	if h.state != StateEstablished {
		return 0, api.NewError(api.ErrCodeInternal, "write before handshake completion")
	}
	n, err := h.conn.Write(b)
	if err != nil {
		return n, err
	}
	if err := h.Flush(); err != nil && !errors.Is(err, api.ErrWouldBlock) {
		return n, err
	}
	return n, nil
}

// Flush drains queued ciphertext, returning api.ErrWouldBlock when the
// socket buffer is full.
func (h *Handshake) Flush() error {
	return h.pump.flush()
}

// Pending returns the number of queued ciphertext bytes.
func (h *Handshake) Pending() int {
	return len(h.pump.out)
}

// ConnectionState reports negotiated parameters; valid once established.
func (h *Handshake) ConnectionState() tls.ConnectionState {
	return h.conn.ConnectionState()
}

// Close abandons an in-flight handshake, or sends close_notify on an
// established connection. It never closes the descriptor.
func (h *Handshake) Close() error {
	switch h.state {
	case StateEstablished:
		_ = h.conn.Close()
		_ = h.pump.flush()
		h.cancel()
	case StateCreated, StateHandshaking:
		h.abandon()
		h.state = StateFailed
		h.err = api.NewError(api.ErrCodeHandshake, "handshake abandoned").Wrap(api.ErrClosed)
	}
	return nil
}
