// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package authz

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nfvlabs/nbi/internal/models"
)

// Document top-level keys of the two policy files.
const (
	resourcesDocKey = "resources_to_operations"
	rolesDocKey     = "roles_to_operations"
)

// LoadPolicyFiles reads and validates the two policy documents. Any schema
// violation is a fatal configuration error: the process must refuse to serve
// traffic rather than fall back to per-request guessing.
func LoadPolicyFiles(resourcesPath, rolesPath string) (map[string]string, []RoleOperations, error) {
	resources, err := loadResourcesDoc(resourcesPath)
	if err != nil {
		return nil, nil, err
	}
	roles, err := loadRolesDoc(rolesPath)
	if err != nil {
		return nil, nil, err
	}
	return resources, roles, nil
}

func loadResourcesDoc(path string) (map[string]string, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, models.WrapError(models.KindConfig, err, "load resource map "+path)
	}

	raw, ok := k.Raw()[resourcesDocKey].(map[string]any)
	if !ok {
		return nil, models.Errorf(models.KindConfig, "resource map %s: missing %q mapping", path, resourcesDocKey)
	}

	resources := make(map[string]string, len(raw))
	for key, value := range raw {
		operation, ok := value.(string)
		if !ok {
			return nil, models.Errorf(models.KindConfig, "resource map %s: entry %q is not an operation name", path, key)
		}
		resources[key] = operation
	}
	return resources, nil
}

func loadRolesDoc(path string) ([]RoleOperations, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, models.WrapError(models.KindConfig, err, "load role map "+path)
	}

	raw, ok := k.Raw()[rolesDocKey].([]any)
	if !ok {
		return nil, models.Errorf(models.KindConfig, "role map %s: missing %q sequence", path, rolesDocKey)
	}

	roles := make([]RoleOperations, 0, len(raw))
	for i, item := range raw {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, models.Errorf(models.KindConfig, "role map %s: record %d is not a mapping", path, i)
		}
		name, ok := record["role"].(string)
		if !ok || name == "" {
			return nil, models.Errorf(models.KindConfig, "role map %s: record %d has no role name", path, i)
		}
		// A role with no operations mapping compiles to a pure default-deny
		// role, matching the compiler's handling of empty records.
		operations, _ := record["operations"].(map[string]any)
		roles = append(roles, RoleOperations{Role: name, Operations: operations})
	}
	return roles, nil
}
