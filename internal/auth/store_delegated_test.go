// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/nfvlabs/nbi/internal/identity"
	"github.com/nfvlabs/nbi/internal/models"
)

// fakeBackend is a scripted identity backend for delegated-mode tests.
type fakeBackend struct {
	authenticate  func(identity.AuthRequest) (*identity.TokenInfo, error)
	validateToken func(string) (*identity.TokenInfo, error)
	revoked       []string
	revokeErr     error
	roles         map[string][]string
}

func (f *fakeBackend) Authenticate(_ context.Context, req identity.AuthRequest) (*identity.TokenInfo, error) {
	if f.authenticate == nil {
		return nil, models.NewError(models.KindUnauthorized, "authentication rejected")
	}
	return f.authenticate(req)
}

func (f *fakeBackend) ValidateToken(_ context.Context, token string) (*identity.TokenInfo, error) {
	if f.validateToken == nil {
		return nil, models.NewError(models.KindUnauthorized, "invalid token")
	}
	return f.validateToken(token)
}

func (f *fakeBackend) RevokeToken(_ context.Context, token string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeBackend) GetUserRoleList(_ context.Context, userID string) ([]string, error) {
	return f.roles[userID], nil
}

func (f *fakeBackend) GetRoleList(context.Context) ([]identity.Role, error) { return nil, nil }

func (f *fakeBackend) CreateRole(context.Context, string) (*identity.Role, error) {
	return nil, models.NewError(models.KindBackend, "not supported")
}

func (f *fakeBackend) AssignRoleToUser(context.Context, string, string, string) error { return nil }

func (f *fakeBackend) GetUserList(context.Context) ([]identity.User, error) {
	return []identity.User{{ID: "u1", Username: "alice"}}, nil
}

func newTestDelegatedStore(backend *fakeBackend) (*delegatedStore, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	s := newDelegatedStore(DefaultStoreConfig(), backend)
	s.now = func() time.Time { return *clock }
	return s, clock
}

func TestDelegatedIssue(t *testing.T) {
	backend := &fakeBackend{
		authenticate: func(req identity.AuthRequest) (*identity.TokenInfo, error) {
			if req.Username != "alice" || req.Password != "secret" {
				return nil, models.NewError(models.KindUnauthorized, "bad credentials")
			}
			return &identity.TokenInfo{
				ID:          "backend-token-1",
				Username:    req.Username,
				ProjectID:   "p1",
				ProjectName: "Project One",
			}, nil
		},
	}
	s, clock := newTestDelegatedStore(backend)

	session, err := s.Issue(context.Background(), IssueRequest{
		Credentials: Credentials{Username: "alice", Password: "secret"},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if session.ID != "backend-token-1" {
		t.Errorf("session id = %q, want the backend token id", session.ID)
	}
	if session.Admin {
		t.Error("non-admin project must not set the admin flag")
	}
	// The backend reported no expiry, so the default TTL applies.
	if session.Expires != clock.Add(time.Hour).Unix() {
		t.Errorf("expires = %d, want now + default TTL", session.Expires)
	}

	// Issued sessions are served from the cache without a backend round trip.
	got, err := s.Validate(context.Background(), "backend-token-1")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q, want alice", got.Username)
	}
}

func TestDelegatedIssueAdminProject(t *testing.T) {
	backend := &fakeBackend{
		authenticate: func(req identity.AuthRequest) (*identity.TokenInfo, error) {
			return &identity.TokenInfo{
				ID:          "tok",
				Username:    req.Username,
				ProjectID:   "admin-id",
				ProjectName: AdminProject,
			}, nil
		},
	}
	s, _ := newTestDelegatedStore(backend)
	session, err := s.Issue(context.Background(), IssueRequest{
		Credentials: Credentials{Username: "root", Password: "pw", ProjectID: AdminProject},
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !session.Admin {
		t.Error("admin project name must set the admin flag")
	}
}

func TestDelegatedIssueRequiresCredentials(t *testing.T) {
	s, _ := newTestDelegatedStore(&fakeBackend{})
	_, err := s.Issue(context.Background(), IssueRequest{})
	if !models.IsKind(err, models.KindUnauthorized) {
		t.Errorf("error = %v, want KindUnauthorized", err)
	}
}

func TestDelegatedIssueForwardsExistingToken(t *testing.T) {
	var seen identity.AuthRequest
	backend := &fakeBackend{
		authenticate: func(req identity.AuthRequest) (*identity.TokenInfo, error) {
			seen = req
			return &identity.TokenInfo{ID: "new-tok", Username: "alice", ProjectID: "p2"}, nil
		},
	}
	s, _ := newTestDelegatedStore(backend)

	existing := &models.Session{ID: "old-tok", Username: "alice"}
	_, err := s.Issue(context.Background(), IssueRequest{
		Credentials: Credentials{ProjectID: "p2"},
		Existing:    existing,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if seen.Token != "old-tok" || seen.Project != "p2" {
		t.Errorf("backend saw token=%q project=%q, want old-tok/p2", seen.Token, seen.Project)
	}
	if seen.Password != "" {
		t.Errorf("backend saw password %q for a token re-scope, want empty", seen.Password)
	}
}

func TestDelegatedValidateBackendMiss(t *testing.T) {
	expires := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	backend := &fakeBackend{
		validateToken: func(token string) (*identity.TokenInfo, error) {
			if token != "known" {
				return nil, models.NewError(models.KindUnauthorized, "invalid token")
			}
			return &identity.TokenInfo{ID: token, Username: "alice", Expires: expires}, nil
		},
	}
	s, _ := newTestDelegatedStore(backend)

	session, err := s.Validate(context.Background(), "known")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if session.Expires != expires.Unix() {
		t.Errorf("expires = %d, want the backend-reported expiry", session.Expires)
	}

	if _, err := s.Validate(context.Background(), "unknown"); !models.IsKind(err, models.KindUnauthorized) {
		t.Errorf("unknown token: error = %v, want KindUnauthorized", err)
	}
}

func TestDelegatedValidateExpiredCacheEntry(t *testing.T) {
	backend := &fakeBackend{
		validateToken: func(string) (*identity.TokenInfo, error) {
			return nil, models.NewError(models.KindUnauthorized, "invalid token")
		},
	}
	s, clock := newTestDelegatedStore(backend)
	s.cache.put(&models.Session{ID: "tok", Expires: clock.Add(time.Minute).Unix()})

	*clock = clock.Add(5 * time.Minute)
	if _, err := s.Validate(context.Background(), "tok"); !models.IsKind(err, models.KindUnauthorized) {
		t.Fatalf("error = %v, want KindUnauthorized", err)
	}
	// The expired entry was evicted, not retried from the cache.
	if _, ok := s.cache.get("tok"); ok {
		t.Error("expired cache entry must be evicted")
	}
}

func TestDelegatedListAndGet(t *testing.T) {
	s, clock := newTestDelegatedStore(&fakeBackend{})
	s.cache.put(&models.Session{ID: "a", Username: "alice", Expires: clock.Add(time.Hour).Unix()})
	s.cache.put(&models.Session{ID: "b", Username: "bob", Expires: clock.Add(time.Hour).Unix()})

	sessions, err := s.List(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "a" {
		t.Errorf("List(alice) = %v, want only token a", sessions)
	}

	if _, err := s.Get(context.Background(), "b", &models.Session{Username: "alice"}); !models.IsKind(err, models.KindUnauthorized) {
		t.Errorf("stranger get: error = %v, want KindUnauthorized", err)
	}
	if _, err := s.Get(context.Background(), "b", &models.Session{Username: "alice", Admin: true}); err != nil {
		t.Errorf("admin get: %v", err)
	}
	if _, err := s.Get(context.Background(), "c", &models.Session{Username: "alice"}); !models.IsKind(err, models.KindNotFound) {
		t.Errorf("missing get: error = %v, want KindNotFound", err)
	}
}

func TestDelegatedRevoke(t *testing.T) {
	backend := &fakeBackend{}
	s, clock := newTestDelegatedStore(backend)
	s.cache.put(&models.Session{ID: "tok", Expires: clock.Add(time.Hour).Unix()})

	if err := s.Revoke(context.Background(), "tok"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if len(backend.revoked) != 1 || backend.revoked[0] != "tok" {
		t.Errorf("backend revocations = %v, want [tok]", backend.revoked)
	}
	if _, ok := s.cache.get("tok"); ok {
		t.Error("revoked token still cached")
	}

	// Revoking a token the cache never saw still reaches the backend but
	// reports not found locally.
	if err := s.Revoke(context.Background(), "other"); !models.IsKind(err, models.KindNotFound) {
		t.Errorf("uncached revoke: error = %v, want KindNotFound", err)
	}
}

func TestDelegatedGetUserRoleList(t *testing.T) {
	backend := &fakeBackend{roles: map[string][]string{"tok": {"project_admin"}}}
	s, _ := newTestDelegatedStore(backend)
	roles, err := s.GetUserRoleList(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0] != "project_admin" {
		t.Errorf("roles = %v, want [project_admin]", roles)
	}
}
