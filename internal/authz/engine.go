// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package authz

import (
	"context"
	"slices"

	"github.com/nfvlabs/nbi/internal/logging"
	"github.com/nfvlabs/nbi/internal/models"
)

// RoleLister supplies the role names held by the owner of a session.
// The internal token store and the delegated identity backend both satisfy it.
type RoleLister interface {
	GetUserRoleList(ctx context.Context, sessionID string) ([]string, error)
}

// Engine renders allow/deny decisions from the compiled catalog and the
// caller's role set.
type Engine struct {
	catalog *Catalog
	roles   RoleLister
}

// NewEngine creates an authorization engine over a compiled catalog.
func NewEngine(catalog *Catalog, roles RoleLister) *Engine {
	return &Engine{catalog: catalog, roles: roles}
}

// Check grants or denies the session access to the operation. Operations that
// list the anonymous role are public and allowed unconditionally; otherwise
// access requires a non-empty intersection between the caller's roles and the
// operation's allowed roles.
func (e *Engine) Check(ctx context.Context, session *models.Session, operation string) error {
	allowed := e.catalog.AllowedRoles(operation)

	if slices.Contains(allowed, AnonymousRole) {
		decisions.WithLabelValues("allow").Inc()
		return nil
	}

	held, err := e.roles.GetUserRoleList(ctx, session.ID)
	if err != nil {
		return models.WrapError(models.KindBackend, err, "fetch user role list")
	}

	for _, role := range held {
		if slices.Contains(allowed, role) {
			decisions.WithLabelValues("allow").Inc()
			return nil
		}
	}

	decisions.WithLabelValues("deny").Inc()
	logging.Debug().Str("username", session.Username).Str("operation", operation).
		Strs("held_roles", held).Msg("authorization denied")
	return models.NewError(models.KindUnauthorized, "access denied: lack of permissions")
}
