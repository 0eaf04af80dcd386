// Package config loads application configuration: defaults first, then an
// optional TOML file layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/quirelabs/quire/internal/executor"
	"github.com/quirelabs/quire/internal/logger"
)

const (
	AppName               = "quire"
	DefaultConfigFileName = "config.toml"
)

// Config holds the application's combined configuration.
type Config struct {
	Logger  logger.Config `toml:"logger"`
	History HistoryConfig `toml:"history"`
	Compute ComputeConfig `toml:"compute"`
}

// HistoryConfig tunes the undo stack.
type HistoryConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// ComputeConfig points at the computation kernel.
type ComputeConfig struct {
	ServerURL string `toml:"server_url"` // ws:// or wss:// endpoint; empty disables compute
}

// Default returns a Config with all defaults filled in.
func Default() *Config {
	return &Config{
		Logger: logger.Config{
			Level: "info",
			File:  "",
		},
		History: HistoryConfig{
			MaxEntries: executor.DefaultMaxHistory,
		},
		Compute: ComputeConfig{
			ServerURL: "",
		},
	}
}

// Load builds the effective configuration. An empty path selects the default
// location (user config dir); a missing file is not an error, the defaults
// simply stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(configDir, AppName, DefaultConfigFileName)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, fmt.Errorf("checking config file %q: %w", path, err)
	}

	metadata, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		logger.Warnf("config %q: unrecognized keys: %v", path, undecoded)
	}

	cfg.validate()
	return cfg, nil
}

// validate resets out-of-range values to their defaults.
func (c *Config) validate() {
	defaults := Default()
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = defaults.History.MaxEntries
	}
	if c.Logger.Level == "" {
		c.Logger.Level = defaults.Logger.Level
	}
}
