// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"strings"
	"testing"

	"github.com/nfvlabs/nbi/internal/models"
)

func TestNewTokenID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTokenID()
		if len(id) != tokenIDLength {
			t.Fatalf("token id length = %d, want %d", len(id), tokenIDLength)
		}
		for _, r := range id {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Fatalf("token id %q contains %q outside the alphabet", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("token id %q generated twice", id)
		}
		seen[id] = true
	}
}

func TestTokenCachePutGet(t *testing.T) {
	cache := newTokenCache()
	session := &models.Session{ID: "t1", Username: "alice"}
	cache.put(session)

	got, ok := cache.get("t1")
	if !ok {
		t.Fatal("cached session not found")
	}
	if got.Username != "alice" {
		t.Errorf("username = %q, want alice", got.Username)
	}

	// The cache hands out copies, not aliases.
	got.Username = "mallory"
	again, _ := cache.get("t1")
	if again.Username != "alice" {
		t.Error("mutating a returned session leaked into the cache")
	}
}

func TestTokenCacheEvictIdempotent(t *testing.T) {
	cache := newTokenCache()
	cache.put(&models.Session{ID: "t1"})

	if !cache.evict("t1") {
		t.Error("first evict should report the entry was cached")
	}
	if cache.evict("t1") {
		t.Error("second evict should report not cached")
	}
	if cache.evict("never-existed") {
		t.Error("evicting an unknown key should report not cached")
	}
	if _, ok := cache.get("t1"); ok {
		t.Error("evicted entry still retrievable")
	}
}

func TestTokenCacheClear(t *testing.T) {
	cache := newTokenCache()
	cache.put(&models.Session{ID: "a"})
	cache.put(&models.Session{ID: "b"})
	cache.clear()
	if len(cache.list()) != 0 {
		t.Error("clear left entries behind")
	}
}

func TestTokenCacheList(t *testing.T) {
	cache := newTokenCache()
	cache.put(&models.Session{ID: "a", Username: "u1"})
	cache.put(&models.Session{ID: "b", Username: "u2"})
	sessions := cache.list()
	if len(sessions) != 2 {
		t.Fatalf("list returned %d sessions, want 2", len(sessions))
	}
}
