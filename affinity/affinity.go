// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and binds that thread to
// one CPU of the process's allowed set, chosen by slot round-robin. It
// returns the CPU picked. Call Unpin from the same goroutine.
func Pin(slot int) (int, error) {
	runtime.LockOSThread()
	cpu, err := pinPlatform(slot)
	if err != nil {
		runtime.UnlockOSThread()
		return -1, err
	}
	return cpu, nil
}

// Unpin restores the process's allowed set and releases the thread lock.
func Unpin() error {
	defer runtime.UnlockOSThread()
	return unpinPlatform()
}
