package bootstrap

import (
	"fmt"

	"github.com/kbukum/vaultflow/config"
)

// LoadConfig reads the vaultflow configuration from configFile (or the
// standard locations when empty), applies the AI_STACK_* overrides and
// defaults, and validates the result.
func LoadConfig(configFile, envFile string) (*config.AppConfig, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}

	cfg := &config.AppConfig{}
	if err := config.LoadConfig("vaultflow", cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
