// SPDX-License-Identifier: MIT

package lpmtrie

// Merger is the metadata capability every embedder's record type must
// implement (spec.md §4.5). M is the concrete metadata type itself — the
// same self-referencing pattern used throughout this module for
// family-polymorphic values.
type Merger[M any] interface {
	// MergeUpdate folds update into the receiver and returns the merged
	// value, called whenever a prefix already present in the store is
	// inserted again. Implementations MUST be idempotent under replay of
	// a single logical update, since a CAS collision can invoke this more
	// than once for what the caller sees as a single write.
	MergeUpdate(update M, userIn any) (M, error)

	// CloneMergeUpdate behaves like MergeUpdate but the returned value
	// must share no mutable state with the receiver or update.
	CloneMergeUpdate(update M, userIn any) (M, error)
}
