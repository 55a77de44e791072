// control/profile.go
// Author: momentics <momentics@gmail.com>
//
// Passive profiling depository. Instrumented scopes accumulate call counts
// and inclusive/exclusive time per call site; the totals are read once at
// shutdown.

package control

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProfileItem is the accumulated record of one call site.
type ProfileItem struct {
	File string
	Line int
	Func string

	Samples uint64
	// Total is the time between entering and leaving the scope.
	Total time.Duration
	// Exclusive is Total minus time spent in nested profiled scopes.
	Exclusive time.Duration
}

type siteKey struct {
	file string
	line int
	fn   string
}

// ProfileDepository accumulates samples from any number of Profilers.
type ProfileDepository struct {
	enabled atomic.Bool
	mu      sync.Mutex
	items   map[siteKey]*ProfileItem
}

// NewProfileDepository returns a stopped depository.
func NewProfileDepository() *ProfileDepository {
	return &ProfileDepository{items: make(map[siteKey]*ProfileItem)}
}

func (d *ProfileDepository) Start()        { d.enabled.Store(true) }
func (d *ProfileDepository) Stop()         { d.enabled.Store(false) }
func (d *ProfileDepository) Enabled() bool { return d != nil && d.enabled.Load() }

// Accumulate adds one sample for the given call site.
func (d *ProfileDepository) Accumulate(file string, line int, fn string, total, exclusive time.Duration) {
	if !d.Enabled() {
		return
	}
	k := siteKey{file: file, line: line, fn: fn}
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.items[k]
	if !ok {
		it = &ProfileItem{File: file, Line: line, Func: fn}
		d.items[k] = it
	}
	it.Samples++
	it.Total += total
	it.Exclusive += exclusive
}

// Snapshot copies all items, most expensive first.
func (d *ProfileDepository) Snapshot() []ProfileItem {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	out := make([]ProfileItem, 0, len(d.items))
	for _, it := range d.items {
		out = append(out, *it)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Func < out[j].Func
	})
	return out
}

type profileFrame struct {
	start    time.Time
	children time.Duration
}

// Profiler records nested scopes for one goroutine (one reactor worker).
// It is not safe for concurrent use.
type Profiler struct {
	dep   *ProfileDepository
	stack []profileFrame
}

// NewProfiler binds a profiler to dep; a nil dep yields a no-op profiler.
func NewProfiler(dep *ProfileDepository) *Profiler {
	return &Profiler{dep: dep}
}

// Enter opens a scope attributed to the caller; call the returned func to
// close it, usually via defer.
func (p *Profiler) Enter() func() {
	if p == nil || !p.dep.Enabled() {
		return func() {}
	}
	pc, file, line, _ := runtime.Caller(1)
	fn := "?"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	p.stack = append(p.stack, profileFrame{start: time.Now()})
	depth := len(p.stack)
	return func() {
		if len(p.stack) != depth {
			// Unbalanced exit; drop the sample rather than misattribute it.
			return
		}
		fr := p.stack[depth-1]
		p.stack = p.stack[:depth-1]
		total := time.Since(fr.start)
		if depth > 1 {
			p.stack[depth-2].children += total
		}
		p.dep.Accumulate(file, line, fn, total, total-fr.children)
	}
}
