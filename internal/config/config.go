package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Terminal TerminalConfig
	Network  NetworkConfig
	Sidecar  SidecarConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"4690"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// TerminalConfig holds terminal session defaults.
type TerminalConfig struct {
	DefaultCols int `envconfig:"TERMINAL_COLS" default:"80"`
	DefaultRows int `envconfig:"TERMINAL_ROWS" default:"24"`
}

// NetworkConfig holds connectivity prober configuration.
type NetworkConfig struct {
	ProbeURL        string `envconfig:"NET_PROBE_URL" default:"https://1.1.1.1"`
	ProbeTimeoutSec int    `envconfig:"NET_PROBE_TIMEOUT" default:"3"`
	IntervalSec     int    `envconfig:"NET_PROBE_INTERVAL" default:"3"`
}

// SidecarConfig holds companion service configuration.
type SidecarConfig struct {
	Enabled          bool   `envconfig:"SIDECAR_ENABLED" default:"true"`
	OrchestratorPort int    `envconfig:"ORCHESTRATOR_PORT" default:"4689"`
	OperatorPort     int    `envconfig:"OPERATOR_PORT" default:"4688"`
	BinDir           string `envconfig:"SIDECAR_BIN_DIR" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "4690",
			Host: "127.0.0.1",
		},
		Terminal: TerminalConfig{
			DefaultCols: 80,
			DefaultRows: 24,
		},
		Network: NetworkConfig{
			ProbeURL:        "https://1.1.1.1",
			ProbeTimeoutSec: 3,
			IntervalSec:     3,
		},
		Sidecar: SidecarConfig{
			Enabled:          true,
			OrchestratorPort: 4689,
			OperatorPort:     4688,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
