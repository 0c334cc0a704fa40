// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/nfvlabs/nbi/internal/identity"
	"github.com/nfvlabs/nbi/internal/models"
)

// delegatedStore forwards authentication, validation and revocation to an
// external identity backend, keeping only a bounded-TTL session cache by
// token id.
type delegatedStore struct {
	backend identity.Backend
	cfg     StoreConfig
	cache   *tokenCache

	now func() time.Time
}

func newDelegatedStore(cfg StoreConfig, backend identity.Backend) *delegatedStore {
	return &delegatedStore{
		backend: backend,
		cfg:     cfg,
		cache:   newTokenCache(),
		now:     time.Now,
	}
}

// sessionFromTokenInfo maps a backend token onto a session record, applying
// the default TTL when the backend reports no expiry.
func (s *delegatedStore) sessionFromTokenInfo(info *identity.TokenInfo, remote models.RemoteInfo) *models.Session {
	now := s.now()
	expires := info.Expires
	if expires.IsZero() {
		expires = now.Add(s.cfg.TokenTTL)
	}
	return &models.Session{
		ID:         info.ID,
		IssuedAt:   now.Unix(),
		Expires:    expires.Unix(),
		Username:   info.Username,
		ProjectID:  info.ProjectID,
		Admin:      info.ProjectName == AdminProject,
		RemoteHost: remote.Host,
		RemotePort: remote.Port,
	}
}

// Issue authenticates against the backend with credentials, or re-scopes the
// existing token when one is supplied.
func (s *delegatedStore) Issue(ctx context.Context, req IssueRequest) (*models.Session, error) {
	authReq := identity.AuthRequest{
		Username: req.Credentials.Username,
		Password: req.Credentials.Password,
		Project:  req.Credentials.ProjectID,
	}
	if req.Existing != nil {
		authReq.Token = req.Existing.ID
	}
	if authReq.Username == "" && authReq.Token == "" {
		return nil, models.NewError(models.KindUnauthorized,
			"provide credentials: username/password or Authorization Bearer token")
	}

	info, err := s.backend.Authenticate(ctx, authReq)
	if err != nil {
		return nil, backendError(err, "authentication rejected by identity backend")
	}

	session := s.sessionFromTokenInfo(info, req.Remote)
	if session.Username == "" && req.Existing != nil {
		session.Username = req.Existing.Username
	}
	s.cache.put(session)
	tokensIssued.WithLabelValues("delegated").Inc()
	return session, nil
}

// Validate checks the cache first, re-checking expiry on every hit, and falls
// back to the backend on a miss.
func (s *delegatedStore) Validate(ctx context.Context, tokenID string) (*models.Session, error) {
	now := s.now()

	if session, ok := s.cache.get(tokenID); ok {
		if !session.Expired(now) {
			cachedLookups.WithLabelValues("hit").Inc()
			tokenValidations.WithLabelValues("valid").Inc()
			return session, nil
		}
		s.cache.evict(tokenID)
	}
	cachedLookups.WithLabelValues("miss").Inc()

	info, err := s.backend.ValidateToken(ctx, tokenID)
	if err != nil {
		tokenValidations.WithLabelValues("invalid").Inc()
		return nil, backendError(err, "invalid token or Authorization http header")
	}

	session := s.sessionFromTokenInfo(info, models.RemoteInfo{})
	if session.Expired(now) {
		tokenValidations.WithLabelValues("expired").Inc()
		return nil, models.NewError(models.KindUnauthorized, "expired token or Authorization http header")
	}
	s.cache.put(session)
	tokenValidations.WithLabelValues("valid").Inc()
	return session, nil
}

// List returns the cached sessions owned by the user.
func (s *delegatedStore) List(ctx context.Context, username string) ([]*models.Session, error) {
	var out []*models.Session
	for _, session := range s.cache.list() {
		if session.Username == username {
			out = append(out, session)
		}
	}
	return out, nil
}

// Get returns one cached session by id, visible only to its owner or an admin.
func (s *delegatedStore) Get(ctx context.Context, tokenID string, requester *models.Session) (*models.Session, error) {
	session, ok := s.cache.get(tokenID)
	if !ok {
		return nil, models.NewError(models.KindNotFound, "token not found")
	}
	if session.Username != requester.Username && !requester.Admin {
		return nil, models.NewError(models.KindUnauthorized, "needed admin privileges")
	}
	return session, nil
}

// Revoke invalidates the token at the backend and drops it from the cache.
func (s *delegatedStore) Revoke(ctx context.Context, tokenID string) error {
	if err := s.backend.RevokeToken(ctx, tokenID); err != nil {
		return backendError(err, "revoke token")
	}
	if !s.cache.evict(tokenID) {
		return models.Errorf(models.KindNotFound, "token %s not found", tokenID)
	}
	tokensRevoked.Inc()
	return nil
}

// GetUserRoleList forwards the role lookup to the backend.
func (s *delegatedStore) GetUserRoleList(ctx context.Context, sessionID string) ([]string, error) {
	roles, err := s.backend.GetUserRoleList(ctx, sessionID)
	if err != nil {
		return nil, backendError(err, "fetch user role list")
	}
	return roles, nil
}

// backendError preserves a typed error kind coming out of the backend
// connector, and classifies anything else as an authorization failure with
// the given message.
func backendError(err error, message string) error {
	var typed *models.Error
	if errors.As(err, &typed) {
		return err
	}
	return models.WrapError(models.KindUnauthorized, err, message)
}
