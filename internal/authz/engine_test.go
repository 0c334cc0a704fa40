// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nfvlabs/nbi/internal/models"
)

// fakeRoleLister returns a fixed role set per session id.
type fakeRoleLister struct {
	roles map[string][]string
	err   error
}

func (f *fakeRoleLister) GetUserRoleList(ctx context.Context, sessionID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[sessionID], nil
}

func testSession(id string) *models.Session {
	now := time.Now().Unix()
	return &models.Session{
		ID:        id,
		IssuedAt:  now,
		Expires:   now + 3600,
		Username:  "alice",
		ProjectID: "p1",
	}
}

func engineCatalog(t *testing.T) *Catalog {
	t.Helper()
	roles := []RoleOperations{
		{Role: "project_viewer", Operations: map[string]any{"vnfds": true}},
		{Role: AnonymousRole, Operations: map[string]any{"tokens:post": true}},
	}
	c, err := LoadCatalog(testResourceMap(), roles)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	return c
}

func TestEngine_AllowViaPrefixInheritance(t *testing.T) {
	lister := &fakeRoleLister{roles: map[string][]string{"tok1": {"project_viewer"}}}
	e := NewEngine(engineCatalog(t), lister)

	if err := e.Check(context.Background(), testSession("tok1"), "vnfds:id"); err != nil {
		t.Errorf("Check(vnfds:id) error = %v, want allow", err)
	}
}

func TestEngine_DenyWithoutMatchingRole(t *testing.T) {
	lister := &fakeRoleLister{roles: map[string][]string{"tok1": {"project_viewer"}}}
	e := NewEngine(engineCatalog(t), lister)

	err := e.Check(context.Background(), testSession("tok1"), "tokens")
	if err == nil {
		t.Fatal("Check(tokens) should deny")
	}
	if !models.IsKind(err, models.KindUnauthorized) {
		t.Errorf("error kind = %v, want unauthorized", models.KindOf(err))
	}
}

func TestEngine_DenyWithNoRolesAtAll(t *testing.T) {
	lister := &fakeRoleLister{roles: map[string][]string{}}
	e := NewEngine(engineCatalog(t), lister)

	if err := e.Check(context.Background(), testSession("tok1"), "vnfds"); err == nil {
		t.Error("Check() with no held roles should deny")
	}
}

func TestEngine_AnonymousOperationIsPublic(t *testing.T) {
	// Role lookup must not even be attempted for public operations.
	lister := &fakeRoleLister{err: errors.New("backend down")}
	e := NewEngine(engineCatalog(t), lister)

	if err := e.Check(context.Background(), testSession("tok1"), "tokens:post"); err != nil {
		t.Errorf("Check(public operation) error = %v, want allow without role lookup", err)
	}
}

func TestEngine_BackendFailureIsBackendKind(t *testing.T) {
	lister := &fakeRoleLister{err: errors.New("connection refused")}
	e := NewEngine(engineCatalog(t), lister)

	err := e.Check(context.Background(), testSession("tok1"), "vnfds")
	if err == nil {
		t.Fatal("Check() with failing role lookup should fail")
	}
	if !models.IsKind(err, models.KindBackend) {
		t.Errorf("error kind = %v, want backend", models.KindOf(err))
	}
}
