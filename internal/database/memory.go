// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package database

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. For production, use the badger driver.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
	}
}

// Create inserts a document into a collection.
func (s *MemoryStore) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	stored, err := copyDoc(doc)
	if err != nil {
		return "", err
	}
	id, _ := stored[IDField].(string)
	if id == "" {
		id = newRecordID()
		stored[IDField] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return "", fmt.Errorf("collection %q: duplicate id %q", collection, id)
	}
	coll[id] = stored
	return id, nil
}

// GetOne returns the single document matching the filter.
func (s *MemoryStore) GetOne(ctx context.Context, collection string, filter Filter, opts ...QueryOption) (map[string]any, error) {
	o := applyOptions(opts)

	list, err := s.GetList(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	switch {
	case len(list) == 0:
		if o.failOnEmpty {
			return nil, ErrNotFound
		}
		return nil, nil
	case len(list) > 1 && o.failOnMore:
		return nil, ErrMultiple
	default:
		return list[0], nil
	}
}

// GetList returns every document matching the filter.
func (s *MemoryStore) GetList(ctx context.Context, collection string, filter Filter) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []map[string]any
	for _, doc := range s.collections[collection] {
		if !matches(doc, filter) {
			continue
		}
		cp, err := copyDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// DeleteOne removes the single document matching the filter.
func (s *MemoryStore) DeleteOne(ctx context.Context, collection string, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	for id, doc := range coll {
		if matches(doc, filter) {
			delete(coll, id)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteList removes every document matching the filter.
func (s *MemoryStore) DeleteList(ctx context.Context, collection string, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	deleted := 0
	for id, doc := range coll {
		if matches(doc, filter) {
			delete(coll, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases resources. The memory store holds none.
func (s *MemoryStore) Close() error {
	return nil
}
