// File: sockfd/sockfd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sockfd provides a single-owner socket descriptor handle that is
// released exactly once on every exit path.

package sockfd

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FD owns one OS descriptor. Ownership moves by passing the *FD; the holder
// that finishes with it calls Close.
type FD struct {
	fd     int
	closed atomic.Bool
}

// New takes ownership of fd.
func New(fd int) *FD {
	return &FD{fd: fd}
}

// Int returns the raw descriptor number, or -1 once closed.
func (f *FD) Int() int {
	if f == nil || f.closed.Load() {
		return -1
	}
	return f.fd
}

// Closed reports whether Close has run.
func (f *FD) Closed() bool {
	return f == nil || f.closed.Load()
}

// Close releases the descriptor. Only the first call reaches the OS; later
// calls return nil.
func (f *FD) Close() error {
	if f == nil || !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Linux releases the descriptor even when close is interrupted.
	if err := unix.Close(f.fd); err != nil && err != unix.EINTR {
		return err
	}
	return nil
}
