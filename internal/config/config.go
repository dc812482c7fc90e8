// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the root configuration for one ctxmgr core instance.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Session   SessionConfig   `toml:"session"`
	Mounts    []MountConfig   `toml:"mounts"`
	Notify    NotifyConfig    `toml:"notify"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Log       LogConfig       `toml:"log"`
}

// NotifyConfig configures the optional NATS broadcast of index events to
// peer processes sharing this store. Disabled by default; the core
// never depends on a notification arriving for correctness.
type NotifyConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// StoreConfig configures the bitemporal document store client.
type StoreConfig struct {
	Path    string `toml:"path"`    // embedded store file
	Workers int    `toml:"workers"` // commit worker pool size
}

// SessionConfig configures the auto-collapse window and default
// filesystem identity.
type SessionConfig struct {
	RecentToolcallsPerTurn int    `toml:"recent_toolcalls_per_turn"`
	RecentTurnsWindow      int    `toml:"recent_turns_window"`
	MachineIDPath          string `toml:"machine_id_path"`
}

// MountConfig is one entry of the resolver's mount table, as read from
// configuration; mount mappings are configuration passed at
// construction, never environment-sniffed.
type MountConfig struct {
	AgentPrefix     string `toml:"agent_prefix"`
	CanonicalPrefix string `toml:"canonical_prefix"`
	FilesystemID    string `toml:"filesystem_id"`
	Writable        bool   `toml:"writable"`
}

// TelemetryConfig controls the OpenTelemetry tracer used for indexer
// spans.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	ServiceName string `toml:"service_name"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `toml:"level"` // DEBUG, INFO, WARN, ERROR
}

// New returns a Config with the spec's default auto-collapse window and
// a local embedded store.
func New() *Config {
	return &Config{
		Store: StoreConfig{
			Path:    "./ctxmgr.db",
			Workers: 4,
		},
		Session: SessionConfig{
			RecentToolcallsPerTurn: 5,
			RecentTurnsWindow:      3,
			MachineIDPath:          "/etc/machine-id",
		},
		Notify: NotifyConfig{
			Subject: "ctxmgr.objects",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ctxmgr",
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Default returns a default configuration.
func Default() *Config { return New() }

// LoadFile loads configuration from a TOML file, overlaying it on the
// defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads ctxmgr.toml from the current directory, applying any
// .env overrides first. Environment variables never drive mount
// mappings or the store endpoint; they exist for secrets and log level
// only.
func LoadDefault() (*Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "ctxmgr.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := New()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets CTXMGR_LOG_LEVEL override the configured log
// level, for quick debugging without editing the TOML file.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("CTXMGR_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}
