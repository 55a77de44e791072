// File: api/handshake.go
// Author: momentics <momentics@gmail.com>
//
// Three-outcome contract for incremental, readiness-driven handshakes.

package api

// Step is the non-failure outcome of one handshake attempt.
type Step int

const (
	// StepDone: the handshake completed; the connection is established.
	StepDone Step = iota + 1
	// StepWantRead: retry after the descriptor becomes readable.
	StepWantRead
	// StepWantWrite: retry after the descriptor becomes writable.
	StepWantWrite
)

func (s Step) String() string {
	switch s {
	case StepDone:
		return "done"
	case StepWantRead:
		return "want-read"
	case StepWantWrite:
		return "want-write"
	default:
		return "invalid"
	}
}

// Interest maps a pending step to the readiness direction the reactor
// should watch next.
func (s Step) Interest() EventType {
	if s == StepWantWrite {
		return EventWrite
	}
	return EventRead
}

// Handshaker is driven by the reactor until Advance returns StepDone or an error.
// Advance never blocks on socket I/O; a non-nil error is terminal.
type Handshaker interface {
	Advance() (Step, error)
	Close() error
}
