// Package config loads vaultflow's application configuration.
//
// Values come from a YAML file (vaultflow.yml, config.yml or the path in
// AI_STACK_CONFIG), an optional .env file and VAULTFLOW_* environment
// variables, in that order of precedence from lowest to highest. The legacy
// AI_STACK_* variables are applied on top by AppConfig.ApplyEnvOverrides.
//
// # Usage
//
//	var cfg config.AppConfig
//	if err := config.LoadConfig("vaultflow", &cfg, config.WithConfigFile(path)); err != nil {
//		return err
//	}
//	cfg.ApplyEnvOverrides()
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
