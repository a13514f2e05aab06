// SPDX-License-Identifier: MIT

package lpmtrie

import "github.com/tbitmap/lpmtrie/internal/lpmerr"

// Error kinds exhaustive for the core (spec.md §7). Compare with errors.Is.
var (
	// ErrNodeCreationMaxRetry is returned when a bounded CAS retry loop —
	// a prefix-slot upsert — exhausts its retry budget.
	ErrNodeCreationMaxRetry = lpmerr.ErrNodeCreationMaxRetry

	// ErrNodeNotFound marks an internal traversal that referenced a node
	// id not yet published. Under correct use this is a bug class, never
	// expected in steady-state operation.
	ErrNodeNotFound = lpmerr.ErrNodeNotFound

	// ErrStoreNotReady is reserved for partially constructed stores; the
	// core never returns it in steady state. Preserved in the public
	// error surface for forward compatibility.
	ErrStoreNotReady = lpmerr.ErrStoreNotReady

	// ErrPrefixNotFound is returned by MoreSpecificsFrom/LessSpecificsFrom
	// when the anchor prefix is not present in the store.
	ErrPrefixNotFound = lpmerr.ErrPrefixNotFound

	// ErrPathSelectionOutdated is reserved for embedders performing
	// optimistic read-compute-write against a returned record; the core
	// never returns it itself.
	ErrPathSelectionOutdated = lpmerr.ErrPathSelectionOutdated

	// ErrInvalidStrides is returned by NewStore when a stride sequence
	// contains an element outside {3,4,5} or does not sum to the address
	// family's bit width.
	ErrInvalidStrides = lpmerr.ErrInvalidStrides
)
