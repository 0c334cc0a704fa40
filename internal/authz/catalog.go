// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package authz compiles the static permission policy and renders
// authorization decisions.
//
// Two configuration documents feed the policy: the resource map, binding
// "<METHOD> <url-template>" pairs to operation names, and the role map,
// binding role names to operation-prefix overrides. Both are compiled once at
// startup into an immutable in-memory catalog; nothing here is recomputed per
// request and the compiled catalog needs no locking.
package authz

import (
	"sort"
	"strings"

	"github.com/nfvlabs/nbi/internal/logging"
	"github.com/nfvlabs/nbi/internal/models"
)

// greedySegment is the one placeholder allowed to consume every remaining
// path segment (package artifact sub-paths).
const greedySegment = "<artifactPath>"

// AnonymousRole marks an operation as public: when it appears among an
// operation's allowed roles, access is granted without a role lookup.
const AnonymousRole = "anonymous"

// RoleOperations is one record of the role map: a role name and its declared
// operation-prefix overrides. The special prefix ":" sets the role's default.
type RoleOperations struct {
	Role       string
	Operations map[string]any
}

// resourceEntry is one compiled resource-map binding.
type resourceEntry struct {
	method    string
	segments  []string
	operation string
	raw       string
}

// greedy reports whether the entry's template ends in the greedy placeholder.
func (e *resourceEntry) greedy() bool {
	return e.segments[len(e.segments)-1] == greedySegment
}

// Catalog is the compiled permission policy: the resource map, the ordered
// distinct operation list and the operation→allowed-roles reverse index.
// Read-only after LoadCatalog returns.
type Catalog struct {
	entries      []resourceEntry
	operations   []string
	allowedRoles map[string][]string
}

// prefixOverride is a declared role override, kept with its declaration index
// so that equal-depth prefixes apply in declaration order.
type prefixOverride struct {
	prefix  string
	allowed bool
}

// LoadCatalog compiles the two policy documents into a Catalog. Malformed
// resource-map entries are fatal; malformed role-map entries are discarded
// with a warning, matching the documented first-wins semantics. Identical
// inputs always compile to an identical catalog: resource-map keys are
// processed in sorted order and role records in declaration order.
func LoadCatalog(resourceMap map[string]string, roleMap []RoleOperations) (*Catalog, error) {
	if len(resourceMap) == 0 {
		return nil, models.NewError(models.KindConfig, "resource map is empty")
	}

	c := &Catalog{allowedRoles: make(map[string][]string)}

	keys := make([]string, 0, len(resourceMap))
	for key := range resourceMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seenOps := make(map[string]bool)
	for _, key := range keys {
		operation := resourceMap[key]
		entry, err := parseResourceKey(key, operation)
		if err != nil {
			return nil, err
		}
		c.entries = append(c.entries, entry)
		if !seenOps[operation] {
			seenOps[operation] = true
			c.operations = append(c.operations, operation)
		}
	}

	roles := parseRoleMap(roleMap)
	for _, op := range c.operations {
		// Reverse index starts empty, not nil, so lookups are stable.
		c.allowedRoles[op] = []string{}
	}
	for _, role := range roles {
		perms := c.resolveRole(role)
		for _, op := range c.operations {
			if perms[op] {
				c.allowedRoles[op] = append(c.allowedRoles[op], role.name)
			}
		}
	}

	return c, nil
}

// parseResourceKey validates and splits a "<METHOD> <url-template>" key.
func parseResourceKey(key, operation string) (resourceEntry, error) {
	fields := strings.Fields(key)
	if len(fields) != 2 {
		return resourceEntry{}, models.Errorf(models.KindConfig, "malformed resource-map key %q: want \"<METHOD> <url-template>\"", key)
	}
	if operation == "" {
		return resourceEntry{}, models.Errorf(models.KindConfig, "resource-map key %q has an empty operation", key)
	}
	if strings.HasSuffix(operation, ":") {
		return resourceEntry{}, models.Errorf(models.KindConfig, "operation %q ends in ':'", operation)
	}

	method := strings.ToUpper(fields[0])
	segments := strings.Split(fields[1], "/")

	greedyCount := 0
	for _, seg := range segments {
		if seg == greedySegment {
			greedyCount++
		}
	}
	if greedyCount > 1 {
		return resourceEntry{}, models.Errorf(models.KindConfig, "resource-map key %q declares %s more than once", key, greedySegment)
	}
	if greedyCount == 1 && segments[len(segments)-1] != greedySegment {
		return resourceEntry{}, models.Errorf(models.KindConfig, "resource-map key %q: %s must be the last segment", key, greedySegment)
	}

	return resourceEntry{
		method:    method,
		segments:  segments,
		operation: operation,
		raw:       key,
	}, nil
}

// compiledRole is a role after override validation and depth ordering.
type compiledRole struct {
	name      string
	root      bool
	overrides []prefixOverride
}

// parseRoleMap validates the role records. A repeated role name is discarded
// (first definition wins); per role, the ":" key sets the default, non-bool
// values and prefixes ending in ":" are discarded, and duplicate prefixes
// keep their first occurrence.
func parseRoleMap(roleMap []RoleOperations) []compiledRole {
	var roles []compiledRole
	seen := make(map[string]bool)

	for _, record := range roleMap {
		if seen[record.Role] {
			logging.Warn().Str("role", record.Role).Msg("duplicated role definition ignored")
			continue
		}
		seen[record.Role] = true

		role := compiledRole{name: record.Role}
		rootSet := false
		declared := make(map[string]bool)

		// Sorted key walk keeps the compilation deterministic; the override
		// application order is fixed separately by depth below.
		opKeys := make([]string, 0, len(record.Operations))
		for key := range record.Operations {
			opKeys = append(opKeys, key)
		}
		sort.Strings(opKeys)

		for _, prefix := range opKeys {
			value, ok := record.Operations[prefix].(bool)
			if !ok {
				logging.Warn().Str("role", record.Role).Str("operation", prefix).
					Msg("non-boolean permission value discarded")
				continue
			}
			if prefix == ":" {
				role.root = value
				rootSet = true
				continue
			}
			if strings.HasSuffix(prefix, ":") {
				logging.Warn().Str("role", record.Role).Str("operation", prefix).
					Msg("operation prefix terminated in ':' discarded")
				continue
			}
			if declared[prefix] {
				logging.Info().Str("role", record.Role).Str("operation", prefix).
					Msg("repeated operation prefix discarded")
				continue
			}
			declared[prefix] = true
			role.overrides = append(role.overrides, prefixOverride{prefix: prefix, allowed: value})
		}

		if !rootSet {
			role.root = false
			logging.Info().Str("role", record.Role).Msg("root permission not defined, defaulting to deny")
		}
		roles = append(roles, role)
	}
	return roles
}

// resolveRole renders the role's full operation→bool table. Every operation
// starts at the role's root default; overrides then apply in ascending
// hierarchy depth (fewer colons first), so the most specific matching prefix
// always decides. Matching is plain string-prefix matching on operation
// names, not segment-aware: a prefix "users" also covers a hypothetical
// operation "usersessions". That is the documented catalog behavior.
func (c *Catalog) resolveRole(role compiledRole) map[string]bool {
	perms := make(map[string]bool, len(c.operations))
	for _, op := range c.operations {
		perms[op] = role.root
	}

	ordered := make([]prefixOverride, len(role.overrides))
	copy(ordered, role.overrides)
	sort.SliceStable(ordered, func(i, j int) bool {
		return strings.Count(ordered[i].prefix, ":") < strings.Count(ordered[j].prefix, ":")
	})

	for _, o := range ordered {
		for _, op := range c.operations {
			if strings.HasPrefix(op, o.prefix) {
				perms[op] = o.allowed
			}
		}
	}
	return perms
}

// Operations returns the catalog's ordered distinct operation names.
func (c *Catalog) Operations() []string {
	out := make([]string, len(c.operations))
	copy(out, c.operations)
	return out
}

// AllowedRoles returns the names of the roles permitted to perform the
// operation. The returned slice must not be mutated.
func (c *Catalog) AllowedRoles(operation string) []string {
	return c.allowedRoles[operation]
}
