// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package identity defines the capability interface for external identity
// backends (delegated token validation, role listings, user management).
// Concrete connectors live outside this core and register themselves through
// the driver registry; the core never assumes more than this surface.
package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// AuthRequest carries the inputs of a delegated authentication call.
// Username/Password and Token are alternative credential sources; Project
// optionally requests a token scoped to that project.
type AuthRequest struct {
	Username string
	Password string
	Token    string
	Project  string
}

// TokenInfo is the backend's view of an issued or validated token.
type TokenInfo struct {
	ID          string
	Username    string
	UserID      string
	ProjectID   string
	ProjectName string

	// Expires is the token expiry. A zero value means the backend did not
	// report one; callers apply their own default TTL.
	Expires time.Time
}

// Role is a role known to the backend.
type Role struct {
	ID   string
	Name string
}

// User is a user known to the backend.
type User struct {
	ID       string
	Username string
	Projects []string
}

// Backend is the identity-backend capability consumed by the token store in
// delegated mode. Implementations must be safe for concurrent use.
type Backend interface {
	// Authenticate authenticates with username/password or revalidates an
	// existing token, optionally re-scoping it to req.Project.
	Authenticate(ctx context.Context, req AuthRequest) (*TokenInfo, error)

	// ValidateToken checks a token and returns its info.
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)

	// RevokeToken invalidates a token at the backend.
	RevokeToken(ctx context.Context, token string) error

	// GetUserRoleList returns the role names held by a user.
	GetUserRoleList(ctx context.Context, userID string) ([]string, error)

	// GetRoleList returns every role known to the backend.
	GetRoleList(ctx context.Context) ([]Role, error)

	// CreateRole creates a role at the backend.
	CreateRole(ctx context.Context, name string) (*Role, error)

	// AssignRoleToUser grants a role to a user within a project.
	AssignRoleToUser(ctx context.Context, user, project, role string) error

	// GetUserList returns every user known to the backend.
	GetUserList(ctx context.Context) ([]User, error)
}

// Constructor builds a Backend from driver-specific configuration.
type Constructor func(cfg map[string]any) (Backend, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Constructor)
)

// Register makes a backend driver available under the given name.
// It is intended to be called from driver package init functions.
func Register(name string, ctor Constructor) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic(fmt.Sprintf("identity: driver %q registered twice", name))
	}
	drivers[name] = ctor
}

// Open builds the backend for the named driver. An unknown name is a fatal
// configuration error at startup.
func Open(name string, cfg map[string]any) (Backend, error) {
	driversMu.RLock()
	ctor, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown identity backend %q (registered: %v)", name, Drivers())
	}
	return ctor(cfg)
}

// Drivers returns the sorted names of all registered backend drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
