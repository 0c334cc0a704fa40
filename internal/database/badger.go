// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package database

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// BadgerStore implements Store on BadgerDB for durability across restarts.
// Documents are stored as JSON values under "<collection>/<id>" keys.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already open BadgerDB.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func recordKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

// Create inserts a document into a collection.
func (s *BadgerStore) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	stored, err := copyDoc(doc)
	if err != nil {
		return "", err
	}
	id, _ := stored[IDField].(string)
	if id == "" {
		id = newRecordID()
		stored[IDField] = id
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(collection, id)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("collection %q: duplicate id %q", collection, id)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetOne returns the single document matching the filter.
func (s *BadgerStore) GetOne(ctx context.Context, collection string, filter Filter, opts ...QueryOption) (map[string]any, error) {
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
func (s *BadgerStore) GetList(ctx context.Context, collection string, filter Filter) ([]map[string]any, error) {
	var out []map[string]any

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := collectionPrefix(collection)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc map[string]any
				if err := json.Unmarshal(val, &doc); err != nil {
					return fmt.Errorf("unmarshal record: %w", err)
				}
				if matches(doc, filter) {
					out = append(out, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOne removes the single document matching the filter.
func (s *BadgerStore) DeleteOne(ctx context.Context, collection string, filter Filter) error {
	list, err := s.GetList(ctx, collection, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return ErrNotFound
	}
	id, _ := list[0][IDField].(string)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(collection, id))
	})
}

// DeleteList removes every document matching the filter.
func (s *BadgerStore) DeleteList(ctx context.Context, collection string, filter Filter) (int, error) {
	list, err := s.GetList(ctx, collection, filter)
	if err != nil {
		return 0, err
	}
	deleted := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, doc := range list {
			id, _ := doc[IDField].(string)
			if err := txn.Delete(recordKey(collection, id)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
