// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"context"
	"time"

	"github.com/nfvlabs/nbi/internal/database"
	"github.com/nfvlabs/nbi/internal/identity"
	"github.com/nfvlabs/nbi/internal/models"
)

// Store collections owned by the internal token store.
const (
	usersCollection    = "users"
	projectsCollection = "projects"
	tokensCollection   = "tokens"
)

// AdminProject is the distinguished project whose members are administrators.
const AdminProject = "admin"

// Credentials are the username/password (and optional target project) of a
// token request.
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ProjectID string `json:"project_id"`
}

// IssueRequest carries the inputs of a token issuance: either fresh
// credentials or an existing valid session being re-scoped, plus the
// requesting peer.
type IssueRequest struct {
	Credentials Credentials
	Remote      models.RemoteInfo

	// Existing is the already validated session when a token is re-scoped.
	Existing *models.Session
}

// TokenStore manages the session-token lifecycle. The backend mode (internal
// or delegated) is chosen once at startup; no operation branches on it per
// call. Implementations must be safe for concurrent use.
type TokenStore interface {
	// Issue creates a session from credentials or by re-scoping an existing
	// valid session.
	Issue(ctx context.Context, req IssueRequest) (*models.Session, error)

	// Validate checks a token id, re-checking expiry even on a cache hit.
	Validate(ctx context.Context, tokenID string) (*models.Session, error)

	// List returns the caller's sessions. The internal store additionally
	// filters out sessions already expired at query time.
	List(ctx context.Context, username string) ([]*models.Session, error)

	// Get returns one session by id, enforcing the owner-or-admin rule
	// against the requesting session.
	Get(ctx context.Context, tokenID string, requester *models.Session) (*models.Session, error)

	// Revoke removes a session immediately and unconditionally.
	Revoke(ctx context.Context, tokenID string) error

	// GetUserRoleList returns the role names held by the session's owner.
	GetUserRoleList(ctx context.Context, sessionID string) ([]string, error)
}

// StoreConfig carries the token-store tunables.
type StoreConfig struct {
	// TokenTTL is the lifetime of issued tokens (internal mode) and the
	// fallback TTL when a delegated backend reports no expiry.
	TokenTTL time.Duration

	// PruneInterval is the minimum time between prune passes over the
	// persistent token collection (internal mode only).
	PruneInterval time.Duration
}

// DefaultStoreConfig mirrors the historical defaults: one-hour tokens,
// pruning at most every thirty minutes.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TokenTTL:      time.Hour,
		PruneInterval: 30 * time.Minute,
	}
}

// NewTokenStore builds the token store for the configured backend mode.
// mode is "internal" or "delegated"; the corresponding collaborator must be
// non-nil. Unknown modes are fatal configuration errors.
func NewTokenStore(mode string, cfg StoreConfig, db database.Store, backend identity.Backend) (TokenStore, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 30 * time.Minute
	}

	switch mode {
	case "internal":
		if db == nil {
			return nil, models.NewError(models.KindConfig, "internal token store requires a database")
		}
		return newInternalStore(cfg, db), nil
	case "delegated":
		if backend == nil {
			return nil, models.NewError(models.KindConfig, "delegated token store requires an identity backend")
		}
		return newDelegatedStore(cfg, backend), nil
	default:
		return nil, models.Errorf(models.KindConfig, "unknown authentication backend %q", mode)
	}
}
