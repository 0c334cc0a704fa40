// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package database

import (
	"context"
	"errors"
	"testing"
)

func seedUsers(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	users := []map[string]any{
		{"_id": "u1", "username": "alice", "age": 30, "projects": []string{"p1", "p2"}},
		{"_id": "u2", "username": "bob", "age": 40, "projects": []string{"p2"}},
		{"_id": "u3", "username": "carol", "age": 50, "projects": []string{"p3"}},
	}
	for _, u := range users {
		if _, err := s.Create(ctx, "users", u); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func TestMemoryStore_CreateAndGetOne(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, s)

	doc, err := s.GetOne(ctx, "users", Filter{"_id": "u1"})
	if err != nil {
		t.Fatalf("GetOne() error = %v", err)
	}
	if doc["username"] != "alice" {
		t.Errorf("username = %v, want alice", doc["username"])
	}
}

func TestMemoryStore_CreateGeneratesID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Create(ctx, "tokens", map[string]any{"username": "alice"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == "" {
		t.Fatal("Create() returned empty id")
	}
	if _, err := s.GetOne(ctx, "tokens", Filter{"_id": id}); err != nil {
		t.Errorf("GetOne(generated id) error = %v", err)
	}
}

func TestMemoryStore_CreateDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, "users", map[string]any{"_id": "u1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create(ctx, "users", map[string]any{"_id": "u1"}); err == nil {
		t.Error("Create() with duplicate id should fail")
	}
}

func TestFilter_Operators(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, s)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"equality", Filter{"username": "bob"}, 1},
		{"equality no match", Filter{"username": "dave"}, 0},
		{"gt", Filter{"age.gt": 35}, 2},
		{"lt", Filter{"age.lt": 35}, 1},
		{"neq", Filter{"username.neq": "alice"}, 2},
		{"contains list", Filter{"projects.cont": "p2"}, 2},
		{"contains substring", Filter{"username.cont": "aro"}, 1},
		{"combined", Filter{"age.gt": 25, "age.lt": 45}, 2},
		{"missing field", Filter{"nope": 1}, 0},
		{"empty matches all", Filter{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.GetList(ctx, "users", tt.filter)
			if err != nil {
				t.Fatalf("GetList() error = %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("GetList() returned %d records, want %d", len(list), tt.want)
			}
		})
	}
}

func TestGetOne_Cardinality(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, s)

	// No match, default fail_on_empty
	if _, err := s.GetOne(ctx, "users", Filter{"username": "dave"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOne(no match) error = %v, want ErrNotFound", err)
	}

	// No match, fail_on_empty disabled
	doc, err := s.GetOne(ctx, "users", Filter{"username": "dave"}, FailOnEmpty(false))
	if err != nil || doc != nil {
		t.Errorf("GetOne(no match, FailOnEmpty(false)) = %v, %v, want nil, nil", doc, err)
	}

	// Multiple matches, default fail_on_more
	if _, err := s.GetOne(ctx, "users", Filter{"age.gt": 35}); !errors.Is(err, ErrMultiple) {
		t.Errorf("GetOne(multi) error = %v, want ErrMultiple", err)
	}

	// Multiple matches, fail_on_more disabled
	doc, err = s.GetOne(ctx, "users", Filter{"age.gt": 35}, FailOnMore(false))
	if err != nil || doc == nil {
		t.Errorf("GetOne(multi, FailOnMore(false)) = %v, %v, want record, nil", doc, err)
	}
}

func TestMemoryStore_DeleteOne(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, s)

	if err := s.DeleteOne(ctx, "users", Filter{"_id": "u2"}); err != nil {
		t.Fatalf("DeleteOne() error = %v", err)
	}
	if _, err := s.GetOne(ctx, "users", Filter{"_id": "u2"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("record still present after DeleteOne")
	}
	if err := s.DeleteOne(ctx, "users", Filter{"_id": "u2"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteOne(gone) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_DeleteList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUsers(t, s)

	n, err := s.DeleteList(ctx, "users", Filter{"age.gt": 35})
	if err != nil {
		t.Fatalf("DeleteList() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteList() = %d, want 2", n)
	}
	list, _ := s.GetList(ctx, "users", Filter{})
	if len(list) != 1 {
		t.Errorf("remaining records = %d, want 1", len(list))
	}
}

func TestMemoryStore_NoAliasing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	doc := map[string]any{"_id": "u1", "username": "alice"}
	if _, err := s.Create(ctx, "users", doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc["username"] = "mallory"

	got, err := s.GetOne(ctx, "users", Filter{"_id": "u1"})
	if err != nil {
		t.Fatalf("GetOne() error = %v", err)
	}
	if got["username"] != "alice" {
		t.Errorf("stored record aliased caller memory: username = %v", got["username"])
	}

	got["username"] = "mallory"
	again, _ := s.GetOne(ctx, "users", Filter{"_id": "u1"})
	if again["username"] != "alice" {
		t.Errorf("returned record aliased store memory: username = %v", again["username"])
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "cassandra"}); err == nil {
		t.Error("Open() with unknown driver should fail")
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	s, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	seedUsers(t, s)

	doc, err := s.GetOne(ctx, "users", Filter{"username": "bob"})
	if err != nil {
		t.Fatalf("GetOne() error = %v", err)
	}
	if doc["_id"] != "u2" {
		t.Errorf("_id = %v, want u2", doc["_id"])
	}

	list, err := s.GetList(ctx, "users", Filter{"age.gt": 35})
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("GetList() returned %d records, want 2", len(list))
	}

	n, err := s.DeleteList(ctx, "users", Filter{"projects.cont": "p2"})
	if err != nil {
		t.Fatalf("DeleteList() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteList() = %d, want 2", n)
	}
	if err := s.DeleteOne(ctx, "users", Filter{"_id": "u3"}); err != nil {
		t.Errorf("DeleteOne() error = %v", err)
	}
	if err := s.DeleteOne(ctx, "users", Filter{"_id": "u3"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteOne(gone) error = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_CollectionIsolation(t *testing.T) {
	s, err := OpenBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.Create(ctx, "tokens", map[string]any{"_id": "x", "username": "alice"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create(ctx, "users", map[string]any{"_id": "x", "username": "alice"}); err != nil {
		t.Fatalf("Create() in second collection error = %v", err)
	}

	list, err := s.GetList(ctx, "tokens", Filter{})
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("tokens collection has %d records, want 1", len(list))
	}
}
