package config

// ServiceConfig defines the standard configuration lifecycle methods shared
// by every config section.
type ServiceConfig interface {
	// ApplyDefaults fills zero values with sensible defaults
	ApplyDefaults()

	// ApplyEnvOverrides applies environment variable overrides
	ApplyEnvOverrides()

	// ResolvePaths resolves relative paths using the given directories.
	// - configDir: directory of the loaded config file
	// - dataDir: base directory for runtime data (store, logs)
	ResolvePaths(configDir, dataDir string)

	// Validate returns an error if the configuration is invalid.
	Validate() error
}

// ApplyServiceConfigs applies the configuration lifecycle to all configs.
// It calls ApplyDefaults, ApplyEnvOverrides, ResolvePaths, and Validate in order.
func ApplyServiceConfigs(configDir, dataDir string, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		cfg.ResolvePaths(configDir, dataDir)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
