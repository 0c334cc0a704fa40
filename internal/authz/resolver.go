// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package authz

import (
	"strings"

	"github.com/nfvlabs/nbi/internal/models"
)

// Resolve maps an incoming (method, path) pair to exactly one operation name
// plus the path parameters extracted from the winning template. Zero or
// multiple surviving templates is a resolution failure surfaced as an
// authorization denial: an ambiguous resource map is a configuration bug and
// the gate denies rather than guesses.
func (c *Catalog) Resolve(method, path string) (string, map[string]string, error) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	reqSegs := strings.Split(path, "/")

	var candidates []*resourceEntry
	for i := range c.entries {
		if c.entries[i].method == method {
			candidates = append(candidates, &c.entries[i])
		}
	}

	for idx, part := range reqSegs {
		var surviving []*resourceEntry
		for _, e := range candidates {
			if idx >= len(e.segments) {
				continue
			}
			seg := e.segments[idx]
			switch {
			case seg == greedySegment:
				// Greedy placeholder consumes everything from here on.
				surviving = append(surviving, e)
			case isPlaceholder(seg), seg == part:
				// No partial trailing overhang: a template whose segment
				// count differs from the request's cannot win on the
				// request's last segment.
				if idx == len(reqSegs)-1 && len(reqSegs) != len(e.segments) {
					continue
				}
				surviving = append(surviving, e)
			}
		}
		candidates = surviving
		if len(candidates) == 1 && candidates[0].greedy() {
			break
		}
	}

	switch {
	case len(candidates) == 0:
		resolutionFailures.WithLabelValues("not_found").Inc()
		return "", nil, models.Errorf(models.KindUnauthorized,
			"cannot make an authorization decision: URL %s not found", path)
	case len(candidates) > 1:
		resolutionFailures.WithLabelValues("ambiguous").Inc()
		return "", nil, models.Errorf(models.KindUnauthorized,
			"cannot make an authorization decision: multiple URLs found for %s", path)
	}

	winner := candidates[0]
	params := make(map[string]string)
	for idx, seg := range winner.segments {
		if !isPlaceholder(seg) {
			continue
		}
		name := seg[1 : len(seg)-1]
		if seg == greedySegment {
			params[name] = strings.Join(reqSegs[idx:], "/")
		} else {
			params[name] = reqSegs[idx]
		}
	}
	return winner.operation, params, nil
}

// isPlaceholder reports whether a template segment is a "<name>" placeholder.
func isPlaceholder(seg string) bool {
	return strings.Contains(seg, "<") && strings.Contains(seg, ">")
}
