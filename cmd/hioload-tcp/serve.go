// File: cmd/hioload-tcp/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The serve subcommand: wires logging, metrics, probes and the server.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/config"
	"github.com/momentics/hioload-tcp/internal/log"
	"github.com/momentics/hioload-tcp/server"
)

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the listener server",
		Long: `
Start listening on every configured address and serve connections with the
built-in echo handler until SIGINT or SIGTERM.

Examples:
  hioload-tcp serve                      # 127.0.0.1:9000, plain TCP
  hioload-tcp serve -c hioload.yaml      # listeners and TLS from file
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := log.Init(cfg.Log); err != nil {
		return err
	}
	logger := log.Default()

	metrics := control.NewMetrics(prometheus.NewRegistry())
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)
	profiles := control.NewProfileDepository()
	if cfg.Profile.Enabled {
		profiles.Start()
	}

	srv, err := server.New(serverConfig(cfg),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithDebugProbes(probes),
		server.WithProfiling(profiles),
	)
	if err != nil {
		return err
	}

	if cfg.Server.MetricsAddr != "" {
		ms := control.NewMetricsServer(cfg.Server.MetricsAddr, metrics, logger)
		if err := ms.Start(); err != nil {
			_ = srv.Close()
			return err
		}
		defer func() {
			if err := ms.Stop(context.Background()); err != nil {
				logger.WithError(err).Warn("metrics server stop")
			}
		}()
	}

	err = srv.Run(ctx)
	profiles.Stop()
	logger.WithFields(log.Fields(probes.DumpState())).Info("final state")
	logger.WithFields(snapshotFields(metrics.GetSnapshot())).Info("final metrics")
	return err
}

func serverConfig(cfg *config.Config) server.Config {
	sc := server.Config{
		Workers:     cfg.Server.Workers,
		PollTimeout: cfg.Server.PollTimeout,
		MaxEvents:   cfg.Server.MaxEvents,
		PinWorkers:  cfg.Server.PinWorkers,
	}
	for _, l := range cfg.Listeners {
		sc.Listeners = append(sc.Listeners, server.ListenerConfig{
			BindAddress:  l.Bind,
			Port:         l.Port,
			CertFile:     l.CertFile,
			KeyFile:      l.KeyFile,
			ClientCAFile: l.ClientCAFile,
		})
	}
	return sc
}

func snapshotFields(snap map[string]float64) log.Fields {
	f := make(log.Fields, len(snap))
	for k, v := range snap {
		f[k] = v
	}
	return f
}
