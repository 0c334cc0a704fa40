// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package database provides the collection-oriented persistent store used by
// the access-control core. Records are schemaless JSON documents grouped into
// named collections (users, projects, tokens, roles_operations) and queried
// with flat filter predicates.
//
// Two drivers are available: a mutex-guarded in-memory store for development
// and testing, and a BadgerDB-backed store for durability across restarts.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Store errors
var (
	// ErrNotFound is returned when a single-record read matches nothing.
	ErrNotFound = errors.New("record not found")

	// ErrMultiple is returned when a single-record read matches more than one record.
	ErrMultiple = errors.New("multiple records found")
)

// IDField is the document field holding the record identifier.
const IDField = "_id"

// Filter selects documents by field value. A plain key matches on equality;
// the suffixes ".gt", ".lt" and ".neq" compare, and ".cont" checks membership
// in a list field (or substring containment for string fields).
type Filter map[string]any

// filterOp is a parsed filter operator.
type filterOp int

const (
	opEq filterOp = iota
	opGt
	opLt
	opNeq
	opCont
)

// parseFilterKey splits a filter key into its field name and operator.
func parseFilterKey(key string) (field string, op filterOp) {
	switch {
	case strings.HasSuffix(key, ".gt"):
		return strings.TrimSuffix(key, ".gt"), opGt
	case strings.HasSuffix(key, ".lt"):
		return strings.TrimSuffix(key, ".lt"), opLt
	case strings.HasSuffix(key, ".neq"):
		return strings.TrimSuffix(key, ".neq"), opNeq
	case strings.HasSuffix(key, ".cont"):
		return strings.TrimSuffix(key, ".cont"), opCont
	default:
		return key, opEq
	}
}

// queryOptions carries the cardinality assertions for single-record reads.
type queryOptions struct {
	failOnEmpty bool
	failOnMore  bool
}

// QueryOption adjusts the behavior of GetOne.
type QueryOption func(*queryOptions)

// FailOnEmpty controls whether GetOne returns ErrNotFound (true, the default)
// or (nil, nil) when no record matches.
func FailOnEmpty(fail bool) QueryOption {
	return func(o *queryOptions) { o.failOnEmpty = fail }
}

// FailOnMore controls whether GetOne returns ErrMultiple (true, the default)
// or the first match when several records match.
func FailOnMore(fail bool) QueryOption {
	return func(o *queryOptions) { o.failOnMore = fail }
}

func applyOptions(opts []QueryOption) queryOptions {
	o := queryOptions{failOnEmpty: true, failOnMore: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is the collection-oriented CRUD capability consumed by the
// access-control core. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a document into a collection. If the document has no
	// "_id" field a random one is generated. Returns the record id.
	Create(ctx context.Context, collection string, doc map[string]any) (string, error)

	// GetOne returns the single document matching the filter, subject to the
	// FailOnEmpty/FailOnMore cardinality assertions.
	GetOne(ctx context.Context, collection string, filter Filter, opts ...QueryOption) (map[string]any, error)

	// GetList returns every document matching the filter.
	GetList(ctx context.Context, collection string, filter Filter) ([]map[string]any, error)

	// DeleteOne removes the single document matching the filter.
	// Returns ErrNotFound when nothing matches.
	DeleteOne(ctx context.Context, collection string, filter Filter) error

	// DeleteList removes every document matching the filter and returns the
	// number of records deleted.
	DeleteList(ctx context.Context, collection string, filter Filter) (int, error)

	// Close releases driver resources.
	Close() error
}

// Config selects and configures a store driver.
type Config struct {
	// Driver is "memory" or "badger".
	Driver string

	// Path is the on-disk location for the badger driver.
	Path string
}

// Open creates a Store for the configured driver. The driver is selected
// exactly once at startup; an unknown name is a fatal configuration error.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// matches reports whether doc satisfies every predicate in filter.
func matches(doc map[string]any, filter Filter) bool {
	for key, want := range filter {
		field, op := parseFilterKey(key)
		got, ok := doc[field]
		if !ok {
			return false
		}
		switch op {
		case opEq:
			if !valueEqual(got, want) {
				return false
			}
		case opNeq:
			if valueEqual(got, want) {
				return false
			}
		case opGt:
			cmp, ok := compare(got, want)
			if !ok || cmp <= 0 {
				return false
			}
		case opLt:
			cmp, ok := compare(got, want)
			if !ok || cmp >= 0 {
				return false
			}
		case opCont:
			if !contains(got, want) {
				return false
			}
		}
	}
	return true
}

// valueEqual compares two scalar values, treating all numeric types as float64.
func valueEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

// compare orders two values: -1, 0 or 1. Numeric values compare numerically,
// strings lexicographically; mixed types do not compare.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// contains checks list membership, or substring containment for strings.
func contains(field, want any) bool {
	switch v := field.(type) {
	case []any:
		for _, item := range v {
			if valueEqual(item, want) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if valueEqual(item, want) {
				return true
			}
		}
		return false
	case string:
		s, ok := want.(string)
		return ok && strings.Contains(v, s)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// copyDoc deep-copies a document through a JSON round trip so that stored
// records never alias caller memory. This also normalizes numeric types to
// float64, matching what the badger driver returns after unmarshaling.
func copyDoc(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return out, nil
}

// newRecordID generates a random record id.
func newRecordID() string {
	return uuid.NewString()
}
