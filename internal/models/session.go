// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Session is a server-issued token record scoping a caller to a project.
// A session is immutable after issuance; it only ever disappears, on expiry
// or revocation. Timestamps are epoch seconds so that store-level range
// filters (expires.gt / expires.lt) compare numerically.
type Session struct {
	ID         string `json:"_id"`
	IssuedAt   int64  `json:"issued_at"`
	Expires    int64  `json:"expires"`
	Username   string `json:"username"`
	ProjectID  string `json:"project_id"`
	Admin      bool   `json:"admin"`
	RemoteHost string `json:"remote_host,omitempty"`
	RemotePort int    `json:"remote_port,omitempty"`
}

// Expired reports whether the session's expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.Expires < now.Unix()
}

// Validate checks the session invariants.
func (s *Session) Validate() error {
	if s.ID == "" {
		return NewError(KindConfig, "session id is empty")
	}
	if s.Expires <= s.IssuedAt {
		return Errorf(KindConfig, "session %s: expires (%d) must be after issued_at (%d)", s.ID, s.Expires, s.IssuedAt)
	}
	return nil
}

// ToDoc converts the session to a store document.
func (s *Session) ToDoc() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return doc, nil
}

// SessionFromDoc rebuilds a session from a store document.
func SessionFromDoc(doc map[string]any) (*Session, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &s, nil
}

// RemoteInfo identifies the peer that requested a token.
type RemoteInfo struct {
	Host string
	Port int
}
