// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsAuthorized counts gate decisions per request.
	// Labels:
	//   - outcome: "allow", "deny"
	requestsAuthorized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_auth_requests_total",
			Help: "Total number of authorization requests through the gate",
		},
		[]string{"outcome"},
	)

	// tokensIssued counts token issuances.
	// Labels:
	//   - mode: "internal", "delegated"
	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_auth_tokens_issued_total",
			Help: "Total number of session tokens issued",
		},
		[]string{"mode"},
	)

	// tokensRevoked counts explicit revocations.
	tokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbi_auth_tokens_revoked_total",
			Help: "Total number of session tokens revoked",
		},
	)

	// tokenValidations counts validation outcomes.
	// Labels:
	//   - outcome: "valid", "expired", "invalid"
	tokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_auth_token_validations_total",
			Help: "Total number of token validations",
		},
		[]string{"outcome"},
	)

	// cachedLookups counts token-cache effectiveness.
	// Labels:
	//   - result: "hit", "miss"
	cachedLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_auth_token_cache_lookups_total",
			Help: "Total number of token cache lookups",
		},
		[]string{"result"},
	)

	// pruneRuns counts prune passes over the persistent token collection.
	pruneRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbi_auth_token_prune_runs_total",
			Help: "Total number of expired-token prune passes",
		},
	)

	// testBypassUses counts activations of the test-only authorization
	// bypass. Any nonzero value outside a test deployment is an incident.
	testBypassUses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nbi_auth_test_bypass_uses_total",
			Help: "Total number of test bypass session substitutions",
		},
	)
)
