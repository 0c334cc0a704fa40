// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package auth implements the authentication core: session-token lifecycle
// management over an internal or delegated identity store, and the
// Authenticator facade that gates every API request.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/nfvlabs/nbi/internal/models"
)

// tokenAlphabet is the character set of issued token ids: URL-safe and
// alphanumeric, 62 symbols.
const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// tokenIDLength is the length of issued token ids.
const tokenIDLength = 32

// NewTokenID generates a cryptographically secure token id.
func NewTokenID() string {
	buf := make([]byte, tokenIDLength)
	if _, err := rand.Read(buf); err != nil {
		// Fallback to less secure but still random ID
		return hex.EncodeToString([]byte(time.Now().String()))[:tokenIDLength]
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}

// tokenCache is the in-memory session cache shared by all request workers.
// Eviction is a remove-if-present operation: concurrent lookups may race to
// evict the same expired key, and both must succeed.
type tokenCache struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func newTokenCache() *tokenCache {
	return &tokenCache{sessions: make(map[string]models.Session)}
}

// get returns a copy of the cached session, if present. Callers must re-check
// expiry on every hit; the cache itself never judges validity.
func (c *tokenCache) get(id string) (*models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

// put stores a copy of the session.
func (c *tokenCache) put(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID] = *s
}

// evict removes the session if present and reports whether it was cached.
func (c *tokenCache) evict(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[id]
	delete(c.sessions, id)
	return ok
}

// clear drops every cached session, forcing reload from the backing store.
func (c *tokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]models.Session)
}

// list returns a copy of every cached session.
func (c *tokenCache) list() []*models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		cp := s
		out = append(out, &cp)
	}
	return out
}
