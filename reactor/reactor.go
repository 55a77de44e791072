// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral reactor options.

package reactor

import (
	"github.com/momentics/hioload-tcp/internal/log"
)

// DefaultMaxEvents bounds the events drained by one Poll call.
const DefaultMaxEvents = 128

type options struct {
	maxEvents int
	logger    log.Logger
}

// Option customises New.
type Option func(*options)

// WithMaxEvents sets the per-Poll event batch size.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithLogger sets the logger used to report callback panics.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = log.Or(o.logger)
	return o
}
