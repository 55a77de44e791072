// File: cmd/hioload-tcp/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Entry point.

// Command hioload-tcp runs the TCP/TLS listener server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
