// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package listener owns listening sockets: dual-stack bind/listen, one
// non-blocking accept per readiness event, and optional TLS wrapping of
// accepted connections before they are handed to the session factory.
package listener
