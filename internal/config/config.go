// Package config handles static configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-tcp/internal/log"
)

// EnvPrefix namespaces environment overrides, e.g. HIOLOAD_SERVER_WORKERS.
const EnvPrefix = "HIOLOAD"

// Config is the root of the YAML document.
type Config struct {
	Log       log.Config       `mapstructure:"log" yaml:"log"`
	Server    ServerConfig     `mapstructure:"server" yaml:"server"`
	Listeners []ListenerConfig `mapstructure:"listeners" yaml:"listeners"`
	Profile   ProfileConfig    `mapstructure:"profile" yaml:"profile"`
}

// ServerConfig tunes the reactor workers.
type ServerConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	MaxEvents   int           `mapstructure:"max_events" yaml:"max_events"`
	PinWorkers  bool          `mapstructure:"pin_workers" yaml:"pin_workers"`
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// ListenerConfig describes one bind address. CertFile and KeyFile enable TLS
// and must be given together.
type ListenerConfig struct {
	Bind         string `mapstructure:"bind" yaml:"bind"`
	Port         int    `mapstructure:"port" yaml:"port"`
	CertFile     string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile      string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	ClientCAFile string `mapstructure:"client_ca_file" yaml:"client_ca_file,omitempty"`
}

// TLS reports whether the listener is configured for TLS.
func (l ListenerConfig) TLS() bool {
	return l.CertFile != ""
}

// ProfileConfig switches the profiling depository on at startup.
type ProfileConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load reads path (when non-empty), applies HIOLOAD_* environment overrides
// and defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []ListenerConfig{{Bind: "127.0.0.1", Port: 9000}}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)

	v.SetDefault("server.workers", 1)
	v.SetDefault("server.poll_timeout", "100ms")
	v.SetDefault("server.max_events", 128)
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("server.pin_workers", false)

	v.SetDefault("profile.enabled", false)
}

// Validate checks values that would otherwise fail late, at bind time.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 1, got %d", c.Server.Workers))
	}
	if c.Server.MaxEvents < 1 {
		errs = append(errs, fmt.Errorf("server.max_events must be >= 1, got %d", c.Server.MaxEvents))
	}
	if c.Server.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.poll_timeout must not be negative"))
	}
	for i, l := range c.Listeners {
		if _, err := netip.ParseAddr(l.Bind); err != nil {
			errs = append(errs, fmt.Errorf("listeners[%d].bind: %q is not a numeric IP address", i, l.Bind))
		}
		if l.Port < 0 || l.Port > 0xFFFF {
			errs = append(errs, fmt.Errorf("listeners[%d].port: %d out of range", i, l.Port))
		}
		if (l.CertFile == "") != (l.KeyFile == "") {
			errs = append(errs, fmt.Errorf("listeners[%d]: cert_file and key_file must be set together", i))
		}
		if l.ClientCAFile != "" && l.CertFile == "" {
			errs = append(errs, fmt.Errorf("listeners[%d]: client_ca_file requires TLS", i))
		}
	}
	return errors.Join(errs...)
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
