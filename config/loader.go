// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables the ATTESTGATE_* environment overlay.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: it
// tries "<env>.yaml", then "default.yaml", then "config.yaml" inside
// ConfigDir, and falls back to an all-defaults Config if none exist.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{Environment: env}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
		applyEnvironmentOverrides(cfg)
	}

	if !options.SkipValidation {
		for _, e := range Validate(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s", e)
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides cfg with ATTESTGATE_*-prefixed
// environment variables, the highest-priority source.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("ATTESTGATE_SGX_ROOT_CERT_PATH"); v != "" && cfg.PinnedRoots != nil {
		cfg.PinnedRoots.SGXRootCertPath = v
	}
	if v := os.Getenv("ATTESTGATE_LISTEN_ADDR"); v != "" && cfg.Tunnel != nil {
		cfg.Tunnel.ListenAddr = v
	}
	if v := os.Getenv("ATTESTGATE_LOG_LEVEL"); v != "" && cfg.Logging != nil {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ATTESTGATE_LOG_FORMAT"); v != "" && cfg.Logging != nil {
		cfg.Logging.Format = v
	}
	if cfg.Metrics != nil {
		if os.Getenv("ATTESTGATE_METRICS_ENABLED") == "true" {
			cfg.Metrics.Enabled = true
		}
		if os.Getenv("ATTESTGATE_METRICS_ENABLED") == "false" {
			cfg.Metrics.Enabled = false
		}
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
