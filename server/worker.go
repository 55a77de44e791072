// File: server/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One reactor goroutine: accepts on its listeners, drives TLS handshakes on
// readiness and pumps data between sessions and the Handler.

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-tcp/affinity"
	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/listener"
	"github.com/momentics/hioload-tcp/session"
)

const readBufferSize = 16 << 10

// tracked is the worker-side state of one session.
type tracked struct {
	conn      *session.Conn
	fd        int
	listener  string
	interest  api.EventType
	announced bool
	closed    bool
}

type worker struct {
	id        int
	srv       *Server
	reactor   api.Reactor
	listeners []*listener.Listener
	sessions  map[int]*tracked
	// ready holds sessions whose OnReady is due after the current poll batch.
	ready *queue.Queue
	prof  *control.Profiler
	log   log.Logger
	buf   []byte

	open atomic.Int64
}

func newWorker(id int, s *Server, r api.Reactor) *worker {
	return &worker{
		id:       id,
		srv:      s,
		reactor:  r,
		sessions: make(map[int]*tracked),
		ready:    queue.New(),
		prof:     control.NewProfiler(s.profiles),
		log:      s.log.WithField("worker", id),
		buf:      make([]byte, readBufferSize),
	}
}

func (w *worker) run(ctx context.Context) error {
	if w.srv.cfg.PinWorkers {
		cpu, err := affinity.Pin(w.id)
		if err != nil {
			w.log.WithError(err).Warn("could not pin worker thread")
		} else {
			w.log.Debugf("worker pinned to CPU %d", cpu)
			defer func() { _ = affinity.Unpin() }()
		}
	}

	for _, l := range w.listeners {
		l := l
		if err := w.reactor.Register(l.FD(), api.EventRead, func(int, api.EventType) { w.accept(l) }); err != nil {
			return fmt.Errorf("worker %d: register listener %s: %w", w.id, l.Addr(), err)
		}
	}

	timeout := int(w.srv.cfg.PollTimeout / time.Millisecond)
	for ctx.Err() == nil {
		if err := w.poll(timeout); err != nil {
			return fmt.Errorf("worker %d: %w", w.id, err)
		}
		w.deliver()
	}
	return nil
}

func (w *worker) poll(timeoutMs int) error {
	defer w.prof.Enter()()
	_, err := w.reactor.Poll(timeoutMs)
	return err
}

// accept drains the listener backlog. Errors are logged by the listener and
// leave it usable; the next readiness event retries.
func (w *worker) accept(l *listener.Listener) {
	defer w.prof.Enter()()
	for {
		s, err := l.TryAccept()
		if err != nil || s == nil {
			return
		}
		c, ok := s.(*session.Conn)
		if !ok {
			w.log.Errorf("unexpected session type %T", s)
			_ = s.Close()
			continue
		}
		w.adopt(c, l.Addr())
	}
}

func (w *worker) adopt(c *session.Conn, addr string) {
	t := &tracked{conn: c, fd: c.FD(), listener: addr, interest: api.EventRead}
	if err := w.reactor.Register(t.fd, t.interest, w.onEvent); err != nil {
		w.log.WithError(err).Error("could not register session")
		_ = c.Close()
		return
	}
	w.sessions[t.fd] = t
	w.open.Add(1)
	w.srv.metrics.SessionOpened()
	w.srv.registry.add(SessionInfo{
		ID:       c.ID(),
		Peer:     c.Peer().String(),
		Listener: addr,
		Worker:   w.id,
		Secure:   c.Secure(),
		Since:    time.Now(),
	})
	w.advance(t)
}

func (w *worker) onEvent(fd int, ev api.EventType) {
	t, ok := w.sessions[fd]
	if !ok {
		return
	}
	if t.conn.State() == session.StateHandshaking {
		w.advance(t)
		return
	}
	w.serve(t, ev)
}

// advance makes one handshake attempt and re-arms the descriptor for the
// direction the handshake is waiting on.
func (w *worker) advance(t *tracked) {
	defer w.prof.Enter()()
	step, err := t.conn.Advance()
	if err != nil {
		w.srv.metrics.Handshake(t.listener, control.HandshakeFailed, t.conn.Steps())
		w.close(t, err)
		return
	}
	if step != api.StepDone {
		w.setInterest(t, step.Interest())
		return
	}
	if t.conn.Secure() {
		w.srv.metrics.Handshake(t.listener, control.HandshakeEstablished, t.conn.Steps())
	}
	w.ready.Add(t)
	w.setInterest(t, t.conn.Interest())
}

// deliver announces sessions that became ready during the last batch.
func (w *worker) deliver() {
	for w.ready.Length() > 0 {
		t := w.ready.Remove().(*tracked)
		if t.closed {
			continue
		}
		t.announced = true
		w.srv.handler.OnReady(t.conn)
		if w.reap(t) {
			continue
		}
		// The handshake may have buffered application data already.
		w.readable(t)
		if !t.closed {
			w.setInterest(t, t.conn.Interest())
		}
	}
}

func (w *worker) serve(t *tracked, ev api.EventType) {
	if ev&api.EventWrite != 0 {
		if err := t.conn.Flush(); err != nil && !errors.Is(err, api.ErrWouldBlock) {
			w.close(t, err)
			return
		}
	}
	if ev&(api.EventRead|api.EventError) != 0 {
		w.readable(t)
	}
	if !t.closed {
		w.setInterest(t, t.conn.Interest())
	}
}

// readable reads until the session would block, handing every chunk to the
// handler.
func (w *worker) readable(t *tracked) {
	defer w.prof.Enter()()
	for !t.closed {
		n, err := t.conn.Read(w.buf)
		if n > 0 {
			w.srv.handler.OnData(t.conn, w.buf[:n])
			if w.reap(t) {
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, api.ErrWouldBlock):
			return
		case errors.Is(err, io.EOF):
			w.close(t, nil)
			return
		default:
			w.close(t, err)
			return
		}
	}
}

// reap finishes sessions the handler closed itself.
func (w *worker) reap(t *tracked) bool {
	if t.conn.State() == session.StateClosed {
		w.close(t, nil)
		return true
	}
	return t.closed
}

func (w *worker) setInterest(t *tracked, ev api.EventType) {
	if t.closed || t.interest == ev {
		return
	}
	if err := w.reactor.Modify(t.fd, ev); err != nil {
		w.close(t, err)
		return
	}
	t.interest = ev
}

// close unregisters the descriptor before the session releases it.
func (w *worker) close(t *tracked, err error) {
	if t.closed {
		return
	}
	t.closed = true
	delete(w.sessions, t.fd)
	if uerr := w.reactor.Unregister(t.fd); uerr != nil {
		w.log.WithError(uerr).Debug("unregister session")
	}
	_ = t.conn.Close()

	w.open.Add(-1)
	w.srv.metrics.SessionClosed()
	w.srv.registry.remove(t.conn.ID())

	l := w.log.WithField("peer", t.conn.Peer().String())
	if err != nil {
		l.WithError(err).Info("Client has disconnected.")
	} else {
		l.Debug("Client has disconnected.")
	}
	if t.announced {
		w.srv.handler.OnClose(t.conn, err)
	}
}

// shutdown closes every session, then detaches the listeners. Handshakes
// still in flight are counted as abandoned.
func (w *worker) shutdown() {
	for _, t := range w.sessions {
		if t.conn.Secure() && t.conn.State() == session.StateHandshaking {
			w.srv.metrics.Handshake(t.listener, control.HandshakeAbandoned, t.conn.Steps())
		}
		w.close(t, api.ErrClosed)
	}
	for _, l := range w.listeners {
		_ = w.reactor.Unregister(l.FD())
	}
}
