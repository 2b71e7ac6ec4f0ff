// Package config holds all synthmeter configuration, loaded from
// .synth/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"synthmeter/internal/gates"
)

// Config holds all synthmeter configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace is the root of the measured source tree.
	Workspace string `yaml:"workspace"`

	Scanner ScannerConfig `yaml:"scanner"`
	Gates   GatesConfig   `yaml:"gates"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// ScannerConfig configures tree scanning.
type ScannerConfig struct {
	// IgnoreDirs overrides the built-in directory deny-list when non-empty.
	IgnoreDirs []string `yaml:"ignore_dirs"`
}

// GateConfig is one gate's policy flags as stored on disk.
type GateConfig struct {
	Required  bool    `yaml:"required"`
	Threshold float64 `yaml:"threshold"`
	Skip      bool    `yaml:"skip"`
}

// GatesConfig holds the startup policy: exactly one entry per gate kind.
type GatesConfig struct {
	Compile GateConfig `yaml:"compile"`
	Test    GateConfig `yaml:"test"`
	Runtime GateConfig `yaml:"runtime"`
}

// Policy converts the on-disk form into the aggregator's policy type.
func (g GatesConfig) Policy() gates.Policy {
	return gates.Policy{
		gates.KindCompile: gates.PolicyEntry(g.Compile),
		gates.KindTest:    gates.PolicyEntry(g.Test),
		gates.KindRuntime: gates.PolicyEntry(g.Runtime),
	}
}

// StorageConfig configures SQLite persistence.
type StorageConfig struct {
	// DatabasePath is relative to the workspace unless absolute.
	DatabasePath string `yaml:"database_path"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the built-in defaults: all gates required at full
// threshold, none skipped.
func DefaultConfig() *Config {
	return &Config{
		Name:      "synthmeter",
		Version:   "1.0.0",
		Workspace: ".",
		Gates: GatesConfig{
			Compile: GateConfig{Required: true, Threshold: 1.0},
			Test:    GateConfig{Required: true, Threshold: 1.0},
			Runtime: GateConfig{Required: true, Threshold: 1.0},
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".synth", "synthmeter.db"),
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8089",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if ws := os.Getenv("SYNTHMETER_WORKSPACE"); ws != "" {
		c.Workspace = ws
	}
	if path := os.Getenv("SYNTHMETER_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if addr := os.Getenv("SYNTHMETER_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if level := os.Getenv("SYNTHMETER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks gate thresholds and required paths.
func (c *Config) Validate() error {
	for name, gate := range map[string]GateConfig{
		"compile": c.Gates.Compile,
		"test":    c.Gates.Test,
		"runtime": c.Gates.Runtime,
	} {
		if gate.Threshold < 0 || gate.Threshold > 1 {
			return fmt.Errorf("gate %s: threshold %v outside [0,1]", name, gate.Threshold)
		}
	}
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	return nil
}

// DatabasePath resolves the storage path against the workspace.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.DatabasePath) {
		return c.Storage.DatabasePath
	}
	return filepath.Join(c.Workspace, c.Storage.DatabasePath)
}

// DefaultConfigPath returns the conventional config location for a workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".synth", "config.yaml")
}
