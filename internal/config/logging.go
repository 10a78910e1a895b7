package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`    // log directory path
	Rotation RotationConfig `yaml:"rotation"`
	Console  ConsoleConfig  `yaml:"console"`
	File     FileConfig     `yaml:"file"`
}

// RotationConfig holds log rotation settings
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

// FileConfig holds file output configuration
type FileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override
	Format  string `yaml:"format"` // text or json
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// DefaultLoggingConfig returns default logging configuration. The CLI is
// interactive, so the console only shows warnings unless asked otherwise.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Level:   "warn",
			Format:  "text",
		},
		File: FileConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
	}
}

// ApplyDefaults fills in missing values with defaults
func (c *LoggingConfig) ApplyDefaults() {
	d := DefaultLoggingConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Dir == "" {
		c.Dir = d.Dir
	}

	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = d.Rotation.MaxSize
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = d.Rotation.MaxBackups
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = d.Rotation.MaxAge
	}
	// Compress stays as given: an explicit false and the zero value look the same.

	// An untouched console or file section is enabled.
	if c.Console.Level == "" && c.Console.Format == "" && !c.Console.Enabled {
		c.Console.Enabled = true
	}
	if c.Console.Level == "" {
		c.Console.Level = c.Level
	}
	if c.Console.Format == "" {
		c.Console.Format = c.Format
	}

	if c.File.Level == "" && c.File.Format == "" && !c.File.Enabled {
		c.File.Enabled = true
	}
	if c.File.Level == "" {
		c.File.Level = c.Level
	}
	if c.File.Format == "" {
		c.File.Format = c.Format
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// CHATSTORE_LOG_LEVEL sets the level of every output.
func (c *LoggingConfig) ApplyEnvOverrides() {
	if v := os.Getenv("CHATSTORE_LOG_LEVEL"); v != "" {
		level := strings.ToLower(v)
		c.Level = level
		c.Console.Level = level
		c.File.Level = level
	}
	if v := os.Getenv("CHATSTORE_LOG_DIR"); v != "" {
		c.Dir = v
	}
}

// ResolvePaths resolves a relative log directory. With a data directory the
// logs live under it; otherwise a plain relative path ends up next to the
// config directory and a path starting with ".." is taken from configDir.
func (c *LoggingConfig) ResolvePaths(configDir, dataDir string) {
	if c.Dir == "" || filepath.IsAbs(c.Dir) {
		return
	}
	var resolved string
	switch {
	case dataDir != "":
		resolved = filepath.Join(dataDir, c.Dir)
	case strings.HasPrefix(c.Dir, ".."):
		resolved = filepath.Join(configDir, c.Dir)
	default:
		resolved = filepath.Join(filepath.Dir(configDir), c.Dir)
	}
	c.Dir = filepath.Clean(resolved)
}

// Validate validates the configuration
func (c *LoggingConfig) Validate() error {
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	if c.Dir == "" && c.File.Enabled {
		return fmt.Errorf("log directory cannot be empty")
	}

	if c.Console.Enabled {
		if c.Console.Level != "" && !validLevels[c.Console.Level] {
			return fmt.Errorf("invalid console log level: %s", c.Console.Level)
		}
		if c.Console.Format != "" && !validFormats[c.Console.Format] {
			return fmt.Errorf("invalid console log format: %s", c.Console.Format)
		}
	}

	if c.File.Enabled {
		if c.File.Level != "" && !validLevels[c.File.Level] {
			return fmt.Errorf("invalid file log level: %s", c.File.Level)
		}
		if c.File.Format != "" && !validFormats[c.File.Format] {
			return fmt.Errorf("invalid file log format: %s", c.File.Format)
		}
	}

	return nil
}
