// File: cmd/hioload-tcp/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The config subcommand: prints the effective configuration as YAML.

package main

import (
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-tcp/internal/config"
)

func newConfigCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `
Load the configuration file, apply HIOLOAD_* environment overrides and
defaults, validate it and print the result as YAML.

Examples:
  hioload-tcp config -c hioload.yaml
  HIOLOAD_SERVER_WORKERS=4 hioload-tcp config
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
