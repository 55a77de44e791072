// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness-driven IO reactors that call
// back into listeners and sessions (epoll today).

package api

// EventType is a readiness bitmask.
type EventType uint32

const (
	EventRead EventType = 1 << iota
	EventWrite
	EventError
)

// Callback is invoked synchronously on the reactor goroutine.
type Callback func(fd int, events EventType)

// Reactor defines the contract consumed by the server: "try now, retry later".
type Reactor interface {
	// Register associates a descriptor with the event loop.
	Register(fd int, events EventType, cb Callback) error

	// Modify replaces the interest set of a registered descriptor.
	Modify(fd int, events EventType) error

	// Unregister removes the descriptor. It must be called before the
	// descriptor is closed.
	Unregister(fd int) error

	// Poll waits up to timeoutMs (negative blocks) and dispatches callbacks.
	Poll(timeoutMs int) (int, error)

	// Wake interrupts a Poll blocked in another goroutine.
	Wake() error

	// Close releases the poller backend.
	Close() error
}
