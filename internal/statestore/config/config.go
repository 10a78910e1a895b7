// Package config provides configuration for the state store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the state store configuration.
type Config struct {
	// Path is the directory that holds the store. The engine itself lives in
	// a "matrix-sdk-state" subdirectory. Ignored when Ephemeral is set.
	Path string `yaml:"path"`

	// Ephemeral keeps the whole store in memory; nothing survives Close.
	Ephemeral bool `yaml:"ephemeral"`

	// BlockCacheSize is the size of the block cache in bytes.
	BlockCacheSize int64 `yaml:"block_cache_size"`

	// BloomBitsPerKey sizes the bloom filter used for point lookups.
	// Zero disables the filter.
	BloomBitsPerKey int `yaml:"bloom_bits_per_key"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "data/store",
		BlockCacheSize:  32 * 1024 * 1024, // 32MB
		BloomBitsPerKey: 10,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.BlockCacheSize == 0 {
		c.BlockCacheSize = defaults.BlockCacheSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATSTORE_STORE_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("CHATSTORE_STORE_EPHEMERAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ephemeral = b
		}
	}
}

// ResolvePaths resolves a relative store path against dataDir.
func (c *Config) ResolvePaths(_, dataDir string) {
	if c.Path == "" || filepath.IsAbs(c.Path) || dataDir == "" {
		return
	}
	c.Path = filepath.Clean(filepath.Join(dataDir, c.Path))
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if !c.Ephemeral && c.Path == "" {
		return fmt.Errorf("store.path is required unless store.ephemeral is set")
	}
	if c.BlockCacheSize < 0 {
		return fmt.Errorf("store.block_cache_size must not be negative")
	}
	if c.BloomBitsPerKey < 0 {
		return fmt.Errorf("store.bloom_bits_per_key must not be negative")
	}
	return nil
}
