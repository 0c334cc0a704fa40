// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decisions counts authorization decisions by outcome.
	// Labels:
	//   - outcome: "allow", "deny"
	decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"outcome"},
	)

	// resolutionFailures counts URL-to-operation resolution failures.
	// Labels:
	//   - reason: "not_found", "ambiguous"
	resolutionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbi_authz_resolution_failures_total",
			Help: "Total number of URL resolution failures",
		},
		[]string{"reason"},
	)
)
