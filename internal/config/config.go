package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	store "github.com/syntrixbase/chatstore/internal/statestore/config"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config/config.yml"

// Config holds the application configuration
type Config struct {
	// DataDir is the base for relative store and log paths. Empty keeps
	// them relative to the working directory and config directory.
	DataDir string `yaml:"data_dir"`

	Store   store.Config  `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadConfig loads configuration from path and the environment.
// Order: defaults -> <path> -> <name>.local.yml next to it -> ApplyEnvOverrides -> ResolvePaths -> Validate
//
// A missing file is skipped; a file that cannot be read or parsed is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	// 1. Defaults first, so YAML can override them including bool fields.
	cfg := &Config{
		Store:   store.DefaultConfig(),
		Logging: DefaultLoggingConfig(),
	}

	// 2. The main file, then its local override.
	for _, name := range []string{path, localPath(path)} {
		if err := loadFile(name, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Lifecycle of every section.
	configDir := filepath.Dir(path)
	if err := ApplyServiceConfigs(configDir, cfg.DataDir, &cfg.Store, &cfg.Logging); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// localPath returns config.local.yml for config.yml.
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return nil
}
