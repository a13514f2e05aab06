// SPDX-License-Identifier: MIT

// Package lpmtrie implements a lock-free, in-memory longest-prefix-match
// store for IPv4 and IPv6 routing prefixes.
//
// The store is a concurrent multi-bit trie (the "tree bitmap" variant):
// internal nodes encode child and prefix presence as two atomic bitmaps
// rather than pointers or slices, and node/prefix identity is derived
// positionally from the address bits on the path from the root. Strides —
// the number of bits consumed per trie level, 3, 4, or 5 at a time — are
// configured once at construction and fixed for the store's lifetime.
//
// A Store supports concurrent Insert, exact-match, longest-match, and
// empty-match queries, each able to report the ordered sets of less- and
// more-specific prefixes alongside the primary result. Metadata attached to
// a prefix is supplied by the embedder along with a merge operator, invoked
// whenever a prefix is inserted more than once.
//
//	type counter struct{ n int }
//
//	func (c counter) MergeUpdate(update counter, _ any) (counter, error) {
//		return counter{n: c.n + update.n}, nil
//	}
//
//	func (c counter) CloneMergeUpdate(update counter, _ any) (counter, error) {
//		return counter{n: c.n + update.n}, nil
//	}
//
//	s, err := lpmtrie.NewStore[counter](nil, nil) // nil strides use the defaults
//	if err != nil {
//		// handle validation error
//	}
//	_ = s.Insert(netip.MustParsePrefix("10.0.0.0/8"), counter{n: 1}, nil)
//
// Package scope stops at the data structure itself: no persistence, no
// route-advertisement semantics, no ACL evaluation, and no CLI or
// serialization layer live here. Those belong to code built on top of this
// package.
package lpmtrie
