// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, profiling and debug introspection for the listener stack.
//
// Provides:
//   - Prometheus collectors for accepts, handshakes and sessions
//   - A passive profiling depository read at shutdown
//   - Named debug probes dumped on demand
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
