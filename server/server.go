// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server wires listeners, reactors and sessions: it owns the listening
// sockets, spreads them over reactor workers and tears everything down when
// the run context ends.

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/listener"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/session"
	"github.com/momentics/hioload-tcp/tlsserver"
)

var ErrAlreadyRunning = errors.New("server already running")

// Server is the high-level facade over listeners and reactor workers.
type Server struct {
	cfg      Config
	log      log.Logger
	handler  Handler
	metrics  *control.Metrics
	profiles *control.ProfileDepository
	probes   *control.DebugProbes

	listeners []*listener.Listener
	registry  *registry

	running   atomic.Bool
	closeOnce sync.Once
}

// New creates every configured listener. If any of them fails, those already
// created are closed and the error is returned.
func New(cfg Config, opts ...Option) (*Server, error) {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}

	s := &Server{
		cfg:      cfg,
		handler:  EchoHandler{},
		registry: newRegistry(16),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = log.Or(s.log)

	if len(cfg.Listeners) == 0 {
		return nil, api.NewError(api.ErrCodeConfig, "no listeners configured")
	}
	for _, lc := range cfg.Listeners {
		l, err := s.listen(lc)
		if err != nil {
			s.closeListeners()
			return nil, err
		}
		s.listeners = append(s.listeners, l)
	}
	s.registerProbes()
	return s, nil
}

func (s *Server) listen(lc ListenerConfig) (*listener.Listener, error) {
	if (lc.CertFile == "") != (lc.KeyFile == "") {
		return nil, api.NewError(api.ErrCodeConfig, "cert file and key file must be set together").
			WithContext("listener", fmt.Sprintf("%s:%d", lc.BindAddress, lc.Port))
	}
	if lc.ClientCAFile != "" && lc.CertFile == "" {
		return nil, api.NewError(api.ErrCodeConfig, "client CA file requires TLS").
			WithContext("listener", fmt.Sprintf("%s:%d", lc.BindAddress, lc.Port))
	}
	var tctx *tlsserver.Context
	if lc.CertFile != "" {
		opts := []tlsserver.Option{tlsserver.WithLogger(s.log)}
		if lc.ClientCAFile != "" {
			opts = append(opts, tlsserver.WithClientCAFile(lc.ClientCAFile))
		}
		var err error
		tctx, err = tlsserver.New(lc.CertFile, lc.KeyFile, opts...)
		if err != nil {
			return nil, fmt.Errorf("listener %s:%d: %w", lc.BindAddress, lc.Port, err)
		}
	}
	l, err := listener.Listen(listener.Config{
		BindAddress: lc.BindAddress,
		Port:        lc.Port,
		TLS:         tctx,
		Factory:     session.Factory(),
		Logger:      s.log,
		Metrics:     s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("listener %s:%d: %w", lc.BindAddress, lc.Port, err)
	}
	return l, nil
}

// Listeners returns the bound listeners in configuration order.
func (s *Server) Listeners() []*listener.Listener {
	return s.listeners
}

// Sessions lists live sessions across all workers.
func (s *Server) Sessions() []SessionInfo {
	return s.registry.snapshot()
}

// Run serves until ctx is cancelled or a worker fails. On return every
// session and listener is closed. A cancelled context is not an error.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.Close()

	workers, err := s.buildWorkers()
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range workers {
			_ = w.reactor.Close()
		}
	}()

	s.log.Infof("Serving %d listener(s) on %d worker(s)", len(s.listeners), len(workers))
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			defer w.shutdown()
			return w.run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		for _, w := range workers {
			if err := w.reactor.Wake(); err != nil {
				s.log.WithError(err).Warn("could not wake reactor")
			}
		}
		return nil
	})

	err = g.Wait()
	s.logProfile()
	if err != nil {
		s.log.WithError(err).Error("server stopped with error")
	}
	return err
}

func (s *Server) buildWorkers() ([]*worker, error) {
	n := s.cfg.Workers
	if n > len(s.listeners) {
		n = len(s.listeners)
	}
	workers := make([]*worker, 0, n)
	for i := 0; i < n; i++ {
		r, err := reactor.New(reactor.WithMaxEvents(s.cfg.MaxEvents), reactor.WithLogger(s.log))
		if err != nil {
			for _, w := range workers {
				_ = w.reactor.Close()
			}
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		workers = append(workers, newWorker(i, s, r))
	}
	for i, l := range s.listeners {
		w := workers[i%n]
		w.listeners = append(w.listeners, l)
	}
	for _, w := range workers {
		w := w
		s.probes.RegisterProbe(fmt.Sprintf("worker.%d.sessions", w.id), func() any {
			return w.open.Load()
		})
	}
	return workers, nil
}

func (s *Server) registerProbes() {
	s.probes.RegisterProbe("server.listeners", func() any {
		addrs := make([]string, 0, len(s.listeners))
		for _, l := range s.listeners {
			if ep, err := l.LocalEndpoint(); err == nil {
				addrs = append(addrs, ep.String())
			} else {
				addrs = append(addrs, l.Addr())
			}
		}
		return addrs
	})
	s.probes.RegisterProbe("server.sessions", func() any {
		return s.registry.len()
	})
}

func (s *Server) logProfile() {
	if !s.profiles.Enabled() {
		return
	}
	for _, it := range s.profiles.Snapshot() {
		s.log.WithFields(log.Fields{
			"func":      it.Func,
			"file":      it.File,
			"line":      it.Line,
			"samples":   it.Samples,
			"total":     it.Total,
			"exclusive": it.Exclusive,
		}).Info("profile")
	}
}

// Close releases the listeners. Run calls it on exit; calling it before Run
// is how a server that never ran is discarded.
func (s *Server) Close() error {
	s.closeOnce.Do(s.closeListeners)
	return nil
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		_ = l.Close()
	}
}
