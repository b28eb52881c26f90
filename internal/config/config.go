// Package config loads the broker's configuration with viper. Values come from, in order of
// precedence, command line flags bound by the caller, IPC_ prefixed environment variables,
// an optional config file and the defaults below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Acceptor kinds.
const (
	AcceptorSocket  = "socket"
	AcceptorHandoff = "handoff"
)

// Device kinds for the simulated devices the server can run with.
const (
	DeviceHMD   = "hmd"
	DeviceLeft  = "left"
	DeviceRight = "right"
)

// EnvPrefix is the prefix of environment variables read by the config.
const EnvPrefix = "IPC"

// Config holds the broker configuration.
type Config struct {
	// SocketPath is where the direct socket acceptor listens.
	SocketPath string `mapstructure:"socket_path"`
	// Acceptor is AcceptorSocket or AcceptorHandoff.
	Acceptor string `mapstructure:"acceptor"`
	// LockPath is the file locked to keep a second server from starting.
	// Empty means SocketPath + ".lock".
	LockPath string `mapstructure:"lock_path"`
	// PollInterval bounds how long the mainloop and session loops block before checking for shutdown.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// ExitOnDisconnect stops the server when any client disconnects.
	ExitOnDisconnect bool `mapstructure:"exit_on_disconnect"`
	// LogLevel is one of trace, debug, info, warn and error.
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is text or json.
	LogFormat string `mapstructure:"log_format"`
	// MetricsAddr is the address of the Prometheus endpoint. Empty disables it.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// Devices lists the simulated devices to run with.
	Devices []string `mapstructure:"devices"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SocketPath:   filepath.Join(os.TempDir(), "xrtipc_comp_ipc"),
		Acceptor:     AcceptorSocket,
		PollInterval: 500 * time.Millisecond,
		LogLevel:     "info",
		LogFormat:    "text",
		Devices:      []string{DeviceHMD, DeviceLeft, DeviceRight},
	}
}

// New returns a viper instance with defaults and environment bindings set up.
// IPC_EXIT_ON_DISCONNECT and IPC_LOG are the historical names of exit_on_disconnect and log_level.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("log_level", EnvPrefix+"_LOG", EnvPrefix+"_LOG_LEVEL")
	return v
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("socket_path", d.SocketPath)
	v.SetDefault("acceptor", d.Acceptor)
	v.SetDefault("lock_path", d.LockPath)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("exit_on_disconnect", d.ExitOnDisconnect)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("devices", d.Devices)
}

// ReadFile merges the config file at path into v. A missing path is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.LockPath == "" {
		cfg.LockPath = cfg.SocketPath + ".lock"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Acceptor {
	case AcceptorSocket, AcceptorHandoff:
	default:
		return fmt.Errorf("acceptor must be %q or %q, got %q", AcceptorSocket, AcceptorHandoff, c.Acceptor)
	}
	if c.Acceptor == AcceptorSocket && c.SocketPath == "" {
		return fmt.Errorf("socket_path must be set for the %s acceptor", AcceptorSocket)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %s", c.PollInterval)
	}
	for _, d := range c.Devices {
		switch d {
		case DeviceHMD, DeviceLeft, DeviceRight:
		default:
			return fmt.Errorf("unknown device %q", d)
		}
	}
	return nil
}
