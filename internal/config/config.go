package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	OutputFormat string `toml:"output_format"` // "json" or "yaml"
	Verbose      bool   `toml:"verbose"`
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		OutputFormat: "json",
	}

	cfgPath := filepath.Join(home, ".config", "sessiontrace", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	return cfg, nil
}

// LoadFile reads a config from an explicit path, still filling defaults.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		OutputFormat: "json",
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
