// Copyright 2025 RefZone Contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/refzone/refsync/refdata"
)

// Config is the daemon configuration, loaded from YAML with environment
// overrides for the deployment-sensitive values.
type Config struct {
	ListenAddr  string   `yaml:"listen_addr"`
	DatabaseURL string   `yaml:"database_url"`
	JWTSecret   string   `yaml:"jwt_secret"`
	Kinds       []string `yaml:"kinds"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: ":8080",
		Kinds:      refdata.Kinds(),
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if v := os.Getenv("REFSYNCD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REFSYNCD_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REFSYNCD_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (or set REFSYNCD_DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (or set REFSYNCD_JWT_SECRET)")
	}
	if len(cfg.Kinds) == 0 {
		return nil, fmt.Errorf("at least one entity kind is required")
	}
	return cfg, nil
}
