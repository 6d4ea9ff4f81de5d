// Package config provides configuration for the CLI.
package config

import (
	appconfig "github.com/stacksos/aicore/pkg/config"
)

// Config holds CLI configuration.
type Config struct {
	// TenantConfigPath is the tenant AI settings YAML file. Empty means
	// built-in defaults plus environment overrides.
	TenantConfigPath string

	// Output format
	Format string // table, json, yaml

	// Verbosity
	Verbose bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TenantConfigPath: appconfig.Env("STACKSOS_AI_CONFIG", ""),
		Format:           appconfig.Env("STACKSOS_FORMAT", "table"),
		Verbose:          appconfig.EnvBool("STACKSOS_VERBOSE", false),
	}
}
