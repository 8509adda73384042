// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads attestgate's configuration tree: pinned
// verification roots, CRL sources, tunnel liveness/timeout knobs,
// logging, and metrics, from YAML with an ATTESTGATE_*-prefixed
// environment overlay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	Environment string        `yaml:"environment" json:"environment"`
	PinnedRoots *RootsConfig  `yaml:"pinned_roots" json:"pinned_roots"`
	Tunnel      *TunnelConfig `yaml:"tunnel" json:"tunnel"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// RootsConfig points at the pinned certificate material used by the QVL
// chain verifiers: an Intel SGX/TDX PCK root and zero or more AMD SEV-SNP
// ARK roots, plus optional CRL sources checked during chain validation.
type RootsConfig struct {
	SGXRootCertPath  string   `yaml:"sgx_root_cert_path" json:"sgx_root_cert_path"`
	AMDRootCertPaths []string `yaml:"amd_root_cert_paths" json:"amd_root_cert_paths"`
	CRLPaths         []string `yaml:"crl_paths" json:"crl_paths"`
}

// TunnelConfig holds the attested tunnel's liveness and timeout knobs
// plus the demo server's listen address.
type TunnelConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" json:"heartbeat_timeout"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" json:"reconnect_delay"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	ListenAddr        string        `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig configures the internal/logger package.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile reads path as YAML (falling back to JSON) and applies
// defaults to the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if len(path) >= 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.PinnedRoots == nil {
		cfg.PinnedRoots = &RootsConfig{}
	}

	if cfg.Tunnel == nil {
		cfg.Tunnel = &TunnelConfig{}
	}
	if cfg.Tunnel.HeartbeatInterval == 0 {
		cfg.Tunnel.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Tunnel.HeartbeatTimeout == 0 {
		cfg.Tunnel.HeartbeatTimeout = 60 * time.Second
	}
	if cfg.Tunnel.ReconnectDelay == 0 {
		cfg.Tunnel.ReconnectDelay = 1 * time.Second
	}
	if cfg.Tunnel.RequestTimeout == 0 {
		cfg.Tunnel.RequestTimeout = 30 * time.Second
	}
	if cfg.Tunnel.ListenAddr == "" {
		cfg.Tunnel.ListenAddr = ":8443"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
