// SPDX-License-Identifier: MIT

// Package lpmerr holds the error-kind sentinels of spec.md §7, shared
// between internal/store, internal/query, and the public package so both
// sides of the internal/public boundary compare against the same values
// with errors.Is. Plain sentinel errors, no custom error framework — the
// teacher (gaissmai-bart) reports its own failures the same way.
package lpmerr

import "errors"

var (
	// ErrNodeCreationMaxRetry is returned when the bounded CAS retry loop
	// of a prefix-slot upsert exhausts its retry budget. The node bit-set
	// loops are not bounded and never return it.
	ErrNodeCreationMaxRetry = errors.New("lpmtrie: exceeded bounded retry count for CAS publication")

	// ErrNodeNotFound marks an internal traversal that referenced a
	// StrideNodeId not yet published. Under correct use this is a bug
	// class, not a user-facing condition.
	ErrNodeNotFound = errors.New("lpmtrie: internal traversal referenced an unpublished node id")

	// ErrStoreNotReady is reserved for partially constructed stores; the
	// core never raises it in steady state.
	ErrStoreNotReady = errors.New("lpmtrie: store is not fully constructed")

	// ErrPrefixNotFound is returned by MoreSpecificsFrom/LessSpecificsFrom
	// when the anchor prefix is absent from the store.
	ErrPrefixNotFound = errors.New("lpmtrie: anchor prefix not found")

	// ErrPathSelectionOutdated is reserved for embedders performing
	// optimistic read-compute-write against a returned record; the core
	// never raises it itself (spec.md §9's open question).
	ErrPathSelectionOutdated = errors.New("lpmtrie: path selection outdated")

	// ErrInvalidStrides is the construction-time validation error for
	// malformed stride configurations (spec.md §7): elements must be in
	// {3,4,5} and must sum to the address family's bit width.
	ErrInvalidStrides = errors.New("lpmtrie: invalid stride configuration")
)
