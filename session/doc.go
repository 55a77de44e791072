// Package session
// Author: momentics <momentics@gmail.com>
//
// Default per-connection session. A Conn owns the accepted descriptor, holds
// the TLS handshake attached by the listener and offers non-blocking
// Read/Write with an outbound queue flushed on write readiness.
//
// A Conn is driven by exactly one reactor goroutine.

package session
