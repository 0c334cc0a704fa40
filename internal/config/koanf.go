// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/nfvlabs/nbi/internal/logging"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nbi/config.yaml",
	"/etc/nbi/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "NBI_CONFIG_PATH"

// EnvPrefix is the prefix for environment variable overrides.
// NBI_AUTH__TOKEN_TTL maps to auth.token_ttl.
const EnvPrefix = "NBI_"

// defaultConfig returns a Config with all defaults applied. These are
// loaded first and then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Log: logging.Config{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		HTTP: HTTPConfig{
			Addr:            ":9999",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "memory",
			Path:   "",
		},
		Auth: AuthConfig{
			Backend:        "internal",
			AllowBasicAuth: true,
			TokenTTL:       time.Hour,
			PruneInterval:  30 * time.Minute,
			Realm:          "nbi",
		},
		RBAC: RBACConfig{
			ResourcesFile: "configs/resources_to_operations.yaml",
			RolesFile:     "configs/roles_to_operations.yaml",
		},
	}
}

// Load builds the configuration from three layered sources:
//  1. Defaults from defaultConfig
//  2. Optional YAML config file (path argument, NBI_CONFIG_PATH, or
//     the first DefaultConfigPaths entry that exists)
//  3. NBI_-prefixed environment variables, highest priority
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile searches NBI_CONFIG_PATH and then the default paths.
// Returns empty string when no config file exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
// A double underscore separates config sections:
//
//	NBI_AUTH__TOKEN_TTL -> auth.token_ttl
//	NBI_HTTP__ADDR      -> http.addr
//	NBI_LOG__LEVEL      -> log.level
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	if !strings.Contains(key, "__") {
		// Unsectioned variables are skipped so unrelated NBI_* vars
		// cannot pollute the config.
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}
