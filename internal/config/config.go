// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package config loads and validates the server configuration from
// defaults, an optional YAML file, and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/nfvlabs/nbi/internal/logging"
	"github.com/nfvlabs/nbi/internal/models"
)

// Config is the root configuration for the NBI server.
type Config struct {
	Log      logging.Config `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	RBAC     RBACConfig     `koanf:"rbac"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the persistent document store
// used for users, projects and tokens in internal auth mode.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// AuthConfig configures token issuance and validation.
type AuthConfig struct {
	// Backend is "internal" (local user database) or "delegated"
	// (external identity backend validates credentials and tokens).
	Backend         string        `koanf:"backend"`
	DelegatedDriver string        `koanf:"delegated_driver"`
	AllowBasicAuth  bool          `koanf:"allow_basic_auth"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	PruneInterval   time.Duration `koanf:"prune_interval"`
	Realm           string        `koanf:"realm"`

	// InitialAdminPassword seeds the first admin user when the user
	// collection is empty. Internal mode only.
	InitialAdminPassword string `koanf:"initial_admin_password"`

	// Test-only authorization bypass. Leave empty in production.
	TestUserNotAuthorized    string `koanf:"test_user_not_authorized"`
	TestProjectNotAuthorized string `koanf:"test_project_not_authorized"`
}

// RBACConfig points at the two policy files compiled into the
// permission catalog at startup.
type RBACConfig struct {
	ResourcesFile string `koanf:"resources_file"`
	RolesFile     string `koanf:"roles_file"`
}

var validDatabaseDrivers = map[string]bool{
	"memory": true,
	"badger": true,
}

var validAuthBackends = map[string]bool{
	"internal":  true,
	"delegated": true,
}

// Validate checks the configuration for values that would make the
// server misbehave at runtime. All violations carry KindConfig.
func (c *Config) Validate() error {
	if !validAuthBackends[c.Auth.Backend] {
		return models.Errorf(models.KindConfig, "unknown auth backend %q (want internal or delegated)", c.Auth.Backend)
	}
	if c.Auth.Backend == "internal" {
		if !validDatabaseDrivers[c.Database.Driver] {
			return models.Errorf(models.KindConfig, "unknown database driver %q (want memory or badger)", c.Database.Driver)
		}
		if c.Database.Driver == "badger" && c.Database.Path == "" {
			return models.NewError(models.KindConfig, "database.path is required for the badger driver")
		}
	}
	if c.Auth.Backend == "delegated" && c.Auth.DelegatedDriver == "" {
		return models.NewError(models.KindConfig, "auth.delegated_driver is required for the delegated backend")
	}
	if c.Auth.TokenTTL <= 0 {
		return models.Errorf(models.KindConfig, "auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.PruneInterval <= 0 {
		return models.Errorf(models.KindConfig, "auth.prune_interval must be positive, got %s", c.Auth.PruneInterval)
	}
	if c.RBAC.ResourcesFile == "" {
		return models.NewError(models.KindConfig, "rbac.resources_file is required")
	}
	if c.RBAC.RolesFile == "" {
		return models.NewError(models.KindConfig, "rbac.roles_file is required")
	}
	if c.HTTP.Addr == "" {
		return models.NewError(models.KindConfig, "http.addr must not be empty")
	}
	if c.Auth.TestUserNotAuthorized != "" {
		// Validate() runs before logging is configured, so the loud
		// warning lives in auth.New; here we only sanity-check pairing.
		if c.Auth.TestProjectNotAuthorized == "" {
			return models.NewError(models.KindConfig, "auth.test_project_not_authorized must be set together with auth.test_user_not_authorized")
		}
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("backend=%s driver=%s addr=%s", c.Auth.Backend, c.Database.Driver, c.HTTP.Addr)
}
