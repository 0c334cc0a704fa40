// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/nfvlabs/nbi/internal/authz"
	"github.com/nfvlabs/nbi/internal/identity"
	"github.com/nfvlabs/nbi/internal/logging"
	"github.com/nfvlabs/nbi/internal/models"
)

// Options configure the Authenticator facade. The backend mode is fixed for
// the process lifetime.
type Options struct {
	// Mode is "internal" or "delegated", matching the token store.
	Mode string

	// AllowBasicAuth permits exchanging Basic credentials for a fresh token
	// transparently during authorization. Off by default.
	AllowBasicAuth bool

	// Realm appears in the WWW-Authenticate challenge.
	Realm string

	// TestUserNotAuthorized, when non-empty, substitutes a fixed fully
	// privileged session whenever authorization would otherwise fail.
	// Test deployments only; every activation is logged loudly.
	TestUserNotAuthorized string

	// TestProjectNotAuthorized scopes the test bypass session.
	// Defaults to the admin project.
	TestProjectNotAuthorized string
}

// Request is the per-call input to Authorize, assembled by the transport
// boundary from headers and the stored session reference.
type Request struct {
	Method        string
	Path          string
	Authorization string

	// StoredToken is the session reference previously stashed by the
	// transport layer (cookie or equivalent).
	StoredToken string

	// LoggedOut marks a session reference explicitly invalidated by logout,
	// forcing re-authentication instead of silent reuse.
	LoggedOut bool

	Remote models.RemoteInfo

	// IssuedToken is set by Authorize when Basic credentials were exchanged
	// for a fresh token; the caller should stash it as the new session
	// reference.
	IssuedToken string
}

// Authenticator is the facade gating every API call: credential extraction,
// token validation, URL-to-operation resolution and the final authorization
// decision. A single instance is shared by all request workers.
type Authenticator struct {
	opts    Options
	store   TokenStore
	catalog *authz.Catalog
	engine  *authz.Engine
	backend identity.Backend
}

// New assembles the facade. backend may be nil in internal mode.
func New(opts Options, store TokenStore, catalog *authz.Catalog, engine *authz.Engine, backend identity.Backend) *Authenticator {
	if opts.Realm == "" {
		opts.Realm = "nbi"
	}
	if opts.TestUserNotAuthorized != "" {
		logging.Warn().Str("user", opts.TestUserNotAuthorized).
			Msg("authorization test bypass is ENABLED; never run this way in production")
	}
	return &Authenticator{
		opts:    opts,
		store:   store,
		catalog: catalog,
		engine:  engine,
		backend: backend,
	}
}

// Challenge is the WWW-Authenticate header value the boundary must attach to
// every authorization failure.
func (a *Authenticator) Challenge() string {
	return `Bearer realm="` + a.opts.Realm + `"`
}

// Authorize authenticates the request and decides whether the caller may
// perform the operation addressed by (method, path). On success it returns
// the session the calling layer uses to scope data access.
func (a *Authenticator) Authorize(ctx context.Context, req *Request) (*models.Session, error) {
	session, err := a.authorize(ctx, req)
	if err != nil {
		requestsAuthorized.WithLabelValues("deny").Inc()
		if bypass := a.testBypass(err); bypass != nil {
			return bypass, nil
		}
		return nil, err
	}
	requestsAuthorized.WithLabelValues("allow").Inc()
	return session, nil
}

func (a *Authenticator) authorize(ctx context.Context, req *Request) (*models.Session, error) {
	token, err := a.extractToken(ctx, req)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, models.NewError(models.KindUnauthorized, "needed a token or Authorization http header")
	}

	session, err := a.store.Validate(ctx, token)
	if err != nil {
		if a.opts.Mode == "delegated" {
			// A dead delegated token is revoked proactively so the cache
			// never retries it.
			if revokeErr := a.store.Revoke(ctx, token); revokeErr != nil &&
				!models.IsKind(revokeErr, models.KindNotFound) {
				logging.Debug().Err(revokeErr).Msg("revoking dead delegated token")
			}
		}
		return nil, err
	}

	operation, _, err := a.catalog.Resolve(req.Method, req.Path)
	if err != nil {
		return nil, err
	}
	if err := a.engine.Check(ctx, session, operation); err != nil {
		return nil, err
	}
	return session, nil
}

// extractToken resolves the request's credentials in priority order: Bearer
// token, stored session reference (unless logged out), then Basic
// credentials exchanged for a fresh token when the deployment allows it.
func (a *Authenticator) extractToken(ctx context.Context, req *Request) (string, error) {
	var token, userPasswd64 string

	if req.Authorization != "" {
		parts := strings.Fields(req.Authorization)
		if len(parts) == 2 {
			switch strings.ToLower(parts[0]) {
			case "bearer":
				token = parts[1]
			case "basic":
				userPasswd64 = parts[1]
			}
		}
	}
	if token != "" {
		return token, nil
	}

	if req.StoredToken != "" && !req.LoggedOut {
		return req.StoredToken, nil
	}

	if userPasswd64 != "" && a.opts.AllowBasicAuth {
		username, password, ok := decodeBasic(userPasswd64)
		if !ok {
			return "", models.NewError(models.KindUnauthorized, "malformed Basic authorization header")
		}
		session, err := a.NewToken(ctx, nil, Credentials{Username: username, Password: password}, req.Remote)
		if err != nil {
			return "", err
		}
		req.IssuedToken = session.ID
		return session.ID, nil
	}

	return "", nil
}

// decodeBasic decodes a Basic credential blob into username and password.
func decodeBasic(encoded string) (username, password string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(raw), ":")
	return username, password, ok
}

// testBypass returns the configured fake session on authorization failure,
// or nil when the bypass is disabled (the default).
func (a *Authenticator) testBypass(cause error) *models.Session {
	if a.opts.TestUserNotAuthorized == "" {
		return nil
	}
	project := a.opts.TestProjectNotAuthorized
	if project == "" {
		project = AdminProject
	}
	testBypassUses.Inc()
	logging.Warn().Err(cause).Str("user", a.opts.TestUserNotAuthorized).
		Msg("authorization failed; substituting test bypass session")
	now := time.Now()
	return &models.Session{
		ID:        "fake-token-id-for-test",
		IssuedAt:  now.Unix(),
		Expires:   now.Add(time.Hour).Unix(),
		Username:  a.opts.TestUserNotAuthorized,
		ProjectID: project,
		Admin:     true,
	}
}

// ValidateToken validates a raw token id against the store.
func (a *Authenticator) ValidateToken(ctx context.Context, tokenID string) (*models.Session, error) {
	return a.store.Validate(ctx, tokenID)
}

// NewToken issues a token from credentials, or re-scopes an existing valid
// session to another project.
func (a *Authenticator) NewToken(ctx context.Context, existing *models.Session, creds Credentials, remote models.RemoteInfo) (*models.Session, error) {
	return a.store.Issue(ctx, IssueRequest{
		Credentials: creds,
		Remote:      remote,
		Existing:    existing,
	})
}

// GetTokenList lists the requesting session owner's tokens.
func (a *Authenticator) GetTokenList(ctx context.Context, session *models.Session) ([]*models.Session, error) {
	return a.store.List(ctx, session.Username)
}

// GetToken returns one token by id under the owner-or-admin rule.
func (a *Authenticator) GetToken(ctx context.Context, session *models.Session, tokenID string) (*models.Session, error) {
	return a.store.Get(ctx, tokenID, session)
}

// DelToken revokes a token under the owner-or-admin rule.
func (a *Authenticator) DelToken(ctx context.Context, session *models.Session, tokenID string) error {
	if _, err := a.store.Get(ctx, tokenID, session); err != nil {
		return err
	}
	return a.store.Revoke(ctx, tokenID)
}

// GetUserList lists users from the delegated identity backend.
func (a *Authenticator) GetUserList(ctx context.Context) ([]identity.User, error) {
	if a.backend == nil {
		return nil, models.NewError(models.KindConfig, "user listing requires a delegated identity backend")
	}
	users, err := a.backend.GetUserList(ctx)
	if err != nil {
		return nil, backendError(err, "list users")
	}
	return users, nil
}
