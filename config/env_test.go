// Copyright (C) 2025 sage-x-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("ATTESTGATE_TEST_VAR", "resolved")

	assert.Equal(t, "resolved", SubstituteEnvVars("${ATTESTGATE_TEST_VAR}"))
	assert.Equal(t, "fallback", SubstituteEnvVars("${ATTESTGATE_MISSING_VAR:fallback}"))
	assert.Equal(t, "", SubstituteEnvVars("${ATTESTGATE_MISSING_VAR}"))
	assert.Equal(t, "plain", SubstituteEnvVars("plain"))
}

func TestSubstituteEnvVarsInConfig(t *testing.T) {
	t.Setenv("ATTESTGATE_TEST_ROOT", "/pinned/root.pem")

	cfg := &Config{
		PinnedRoots: &RootsConfig{SGXRootCertPath: "${ATTESTGATE_TEST_ROOT}"},
		Tunnel:      &TunnelConfig{},
		Logging:     &LoggingConfig{},
		Metrics:     &MetricsConfig{},
	}
	SubstituteEnvVarsInConfig(cfg)
	assert.Equal(t, "/pinned/root.pem", cfg.PinnedRoots.SGXRootCertPath)
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("ATTESTGATE_ENV", "production")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())
}

func TestGetEnvironment_Default(t *testing.T) {
	t.Setenv("ATTESTGATE_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", GetEnvironment())
	assert.True(t, IsDevelopment())
}
