package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hioload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Server.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.PollTimeout)
	assert.Equal(t, 128, cfg.Server.MaxEvents)
	require.Len(t, cfg.Listeners, 1)
	assert.Equal(t, "127.0.0.1", cfg.Listeners[0].Bind)
	assert.False(t, cfg.Profile.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
server:
  workers: 4
  poll_timeout: 250ms
  metrics_addr: 127.0.0.1:9100
listeners:
  - bind: "::1"
    port: 8443
    cert_file: /etc/hioload/server.crt
    key_file: /etc/hioload/server.key
  - bind: 0.0.0.0
    port: 8080
profile:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.PollTimeout)
	assert.Equal(t, "127.0.0.1:9100", cfg.Server.MetricsAddr)
	require.Len(t, cfg.Listeners, 2)
	assert.True(t, cfg.Listeners[0].TLS())
	assert.False(t, cfg.Listeners[1].TLS())
	assert.True(t, cfg.Profile.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HIOLOAD_SERVER_WORKERS", "3")
	t.Setenv("HIOLOAD_LOG_LEVEL", "warn")
	cfg, err := Load(writeFile(t, "server:\n  workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server:\n  workers: 0\n"))
	assert.ErrorContains(t, err, "server.workers")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		l       ListenerConfig
		wantErr string
	}{
		{"ok plain", ListenerConfig{Bind: "127.0.0.1", Port: 1}, ""},
		{"ok tls", ListenerConfig{Bind: "::", Port: 443, CertFile: "a", KeyFile: "b"}, ""},
		{"hostname", ListenerConfig{Bind: "localhost", Port: 1}, "not a numeric IP"},
		{"port", ListenerConfig{Bind: "127.0.0.1", Port: 65536}, "out of range"},
		{"cert without key", ListenerConfig{Bind: "127.0.0.1", CertFile: "a"}, "set together"},
		{"ca without tls", ListenerConfig{Bind: "127.0.0.1", ClientCAFile: "ca"}, "requires TLS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Server:    ServerConfig{Workers: 1, MaxEvents: 1},
				Listeners: []ListenerConfig{tt.l},
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDump(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	out, err := cfg.Dump()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	server := back["server"].(map[string]any)
	assert.Equal(t, "100ms", server["poll_timeout"])
	assert.Equal(t, 1, server["workers"])
}
