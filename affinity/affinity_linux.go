//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

var (
	allowedOnce sync.Once
	allowedSet  unix.CPUSet
	allowed     []int
	allowedErr  error
)

// processSet captures the affinity the process started with, before any
// thread is narrowed.
func processSet() ([]int, error) {
	allowedOnce.Do(func() {
		if err := unix.SchedGetaffinity(0, &allowedSet); err != nil {
			allowedErr = api.SystemError("sched_getaffinity", err)
			return
		}
		allowed = cpusOf(&allowedSet)
	})
	return allowed, allowedErr
}

func cpusOf(set *unix.CPUSet) []int {
	var cpus []int
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus
}

func pinPlatform(slot int) (int, error) {
	cpus, err := processSet()
	if err != nil {
		return -1, err
	}
	if slot < 0 {
		slot = -slot
	}
	cpu := cpus[slot%len(cpus)]
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return -1, api.SystemError("sched_setaffinity", err).WithContext("cpu", cpu)
	}
	return cpu, nil
}

func unpinPlatform() error {
	if _, err := processSet(); err != nil {
		return err
	}
	set := allowedSet
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return api.SystemError("sched_setaffinity", err)
	}
	return nil
}

// Current returns the CPUs the calling thread may run on.
func Current() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, api.SystemError("sched_getaffinity", err)
	}
	return cpusOf(&set), nil
}
