// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness event loop that drives listeners and
// handshaking sessions. Linux uses level-triggered epoll; other platforms get
// a stub.
package reactor
