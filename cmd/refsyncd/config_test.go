// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refzone/refsync/refdata"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refsyncd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("REFSYNCD_LISTEN_ADDR", "")
	t.Setenv("REFSYNCD_DATABASE_URL", "")
	t.Setenv("REFSYNCD_JWT_SECRET", "")
	path := writeConfig(t, `
listen_addr: ":9090"
database_url: "postgres://localhost/refsync"
jwt_secret: "file-secret"
kinds: [teams, journal]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, "postgres://localhost/refsync", cfg.DatabaseURL)
	require.Equal(t, "file-secret", cfg.JWTSecret)
	require.Equal(t, []string{"teams", "journal"}, cfg.Kinds)
}

func TestLoadConfigAppliesDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("REFSYNCD_DATABASE_URL", "postgres://env/refsync")
	t.Setenv("REFSYNCD_JWT_SECRET", "env-secret")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "postgres://env/refsync", cfg.DatabaseURL)
	require.Equal(t, refdata.Kinds(), cfg.Kinds)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("REFSYNCD_DATABASE_URL", "")
	t.Setenv("REFSYNCD_JWT_SECRET", "")
	path := writeConfig(t, `listen_addr: ":9090"`)
	_, err := loadConfig(path)
	require.Error(t, err)
}
