//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/log"
)

// epollReactor implements api.Reactor using level-triggered epoll. Callbacks
// run on the goroutine calling Poll and may register or unregister
// descriptors, including their own.
type epollReactor struct {
	epfd      int      // epoll file descriptor
	wakefd    int      // eventfd used by Wake
	callbacks sync.Map // map[int]api.Callback
	events    []unix.EpollEvent
	log       log.Logger

	closeOnce sync.Once
}

// New creates an epoll reactor.
func New(opts ...Option) (api.Reactor, error) {
	o := buildOptions(opts)

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.SystemError("epoll create", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, api.SystemError("eventfd", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, api.SystemError("epoll ctl add", err)
	}

	return &epollReactor{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, o.maxEvents),
		log:    o.logger,
	}, nil
}

func toEpoll(events api.EventType) uint32 {
	var e uint32
	if events&api.EventRead != 0 {
		e |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&api.EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(e uint32) api.EventType {
	var t api.EventType
	if e&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		t |= api.EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		t |= api.EventWrite
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		t |= api.EventError
	}
	return t
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd int, events api.EventType, cb api.Callback) error {
	if fd < 0 {
		return api.ErrClosed
	}
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	r.callbacks.Store(fd, cb)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		r.callbacks.Delete(fd)
		return api.SystemError("epoll ctl add", err).WithContext("fd", fd)
	}
	return nil
}

// Modify replaces the interest set of a registered descriptor.
func (r *epollReactor) Modify(fd int, events api.EventType) error {
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return api.SystemError("epoll ctl mod", err).WithContext("fd", fd)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	r.callbacks.Delete(fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return api.SystemError("epoll ctl del", err).WithContext("fd", fd)
	}
	return nil
}

// Poll waits for events on registered file descriptors and dispatches them.
// timeoutMs < 0 means block until an event or Wake.
func (r *epollReactor) Poll(timeoutMs int) (int, error) {
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, api.SystemError("epoll wait", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		// An earlier callback in this batch may have unregistered fd.
		val, ok := r.callbacks.Load(fd)
		if !ok {
			continue
		}
		r.dispatch(fd, fromEpoll(ev.Events), val.(api.Callback))
		dispatched++
	}
	return dispatched, nil
}

// dispatch keeps the loop alive when a callback panics.
func (r *epollReactor) dispatch(fd int, events api.EventType, cb api.Callback) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("fd", fd).Errorf("reactor callback panic: %v", p)
		}
	}()
	cb(fd, events)
}

// Wake interrupts a blocked Poll.
func (r *epollReactor) Wake() error {
	var one = [8]byte{1}
	for {
		_, err := unix.Write(r.wakefd, one[:])
		switch err {
		case unix.EINTR:
			continue
		case nil, unix.EAGAIN:
			// EAGAIN: the counter is saturated, a wakeup is already pending.
			return nil
		default:
			return api.SystemError("eventfd write", err)
		}
	}
}

func (r *epollReactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
}

// Close releases the epoll and eventfd descriptors. Registered descriptors
// are not closed; they belong to their owners.
func (r *epollReactor) Close() error {
	var err error
	r.closeOnce.Do(func() {
		_ = unix.Close(r.wakefd)
		if cerr := unix.Close(r.epfd); cerr != nil {
			err = api.SystemError("close epoll", cerr)
		}
	})
	return err
}
