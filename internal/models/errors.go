// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

// Package models holds the shared domain types of the access-control core:
// the session record and the typed error model. The transport layer alone
// maps error kinds to wire statuses.
package models

import (
	"errors"
	"fmt"
)

// Kind classifies an access-control error. The transport boundary maps each
// kind to exactly one wire status; nothing inside the core carries HTTP codes.
type Kind int

const (
	// KindUnauthorized covers missing/invalid/expired tokens, bad
	// credentials, permission denials and unresolvable URLs.
	KindUnauthorized Kind = iota + 1

	// KindNotFound is an unknown record id on direct lookup.
	KindNotFound

	// KindConflict is an operation rejected to protect a privileged resource.
	KindConflict

	// KindConfig is a fatal startup configuration error; the process must
	// refuse to serve traffic.
	KindConfig

	// KindBackend is an identity-backend or persistent-store failure,
	// surfaced immediately and never retried by the core.
	KindBackend
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConfig:
		return "config"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Error is the typed error value used across the access-control core.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause under the given kind, preserving the original for
// errors.Is/errors.As inspection.
func WrapError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Errors produced outside the
// core report KindBackend.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
