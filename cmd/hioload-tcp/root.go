// File: cmd/hioload-tcp/root.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cobra root command and persistent flags.

package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:   "hioload-tcp",
		Short: "hioload-tcp - reactor-driven TCP/TLS listener server",
		Long: `hioload-tcp accepts TCP connections on one or more dual-stack listeners,
optionally performs a non-blocking TLS handshake, and hands ready sessions
to an application handler running on epoll reactor workers.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML)")

	root.AddCommand(newServeCmd(&configFile))
	root.AddCommand(newConfigCmd(&configFile))
	root.AddCommand(newVersionCmd())
	return root
}
