//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-tcp/api"

func pinPlatform(int) (int, error) { return -1, api.ErrNotSupported }

func unpinPlatform() error { return nil }

// Current is not supported outside Linux.
func Current() ([]int, error) { return nil, api.ErrNotSupported }
