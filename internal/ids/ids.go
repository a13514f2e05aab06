// SPDX-License-Identifier: MIT

// Package ids defines the two identity types the trie core derives
// positionally instead of storing as pointers: PrefixID names a routing
// entry, StrideNodeID names an internal trie node. Both are deterministic
// functions of the address bits on the path from the root, so the storage
// maps behave as interned dictionaries (spec.md §3/§9).
package ids

import (
	"fmt"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
)

// PrefixID is the canonical identity of a prefix: net masked to len bits,
// paired with len itself. (0,0) is the default route: its record lives in
// the prefix map under this id like any other, but no node's pfxbitarr
// ever indexes it (spec.md §3, §4.3).
type PrefixID[A addrfam.Bits[A]] struct {
	Net A
	Len uint8
}

// NewPrefixID canonicalizes net to len bits and returns its identity.
func NewPrefixID[A addrfam.Bits[A]](net A, length uint8) PrefixID[A] {
	return PrefixID[A]{Net: net.Truncate(length), Len: length}
}

// IsDefaultRoute reports whether this id names the (0,0) default route.
func (p PrefixID[A]) IsDefaultRoute() bool {
	var zero A
	return p.Len == 0 && p.Net == zero
}

func (p PrefixID[A]) String() string {
	return fmt.Sprintf("%v/%d", p.Net, p.Len)
}

// StrideNodeID is the identity of an internal trie node: the path nibbles
// consumed so far, left-aligned and zero-padded, plus the cumulative
// stride offset (sum of strides from the root to this node).
//
// ChildID derives a StrideNodeID from address bits: the node at cumulative
// offset len names those bits truncated to len bits. Inserts and queries
// pass the walked prefix's own bits; the more-specifics walk in
// internal/node first assembles candidate bits with addrfam.Bits.WithNibble.
// This package itself holds no bit-assembly logic.
type StrideNodeID[A addrfam.Bits[A]] struct {
	Net A
	Len uint8
}

// Root returns the StrideNodeID of the trie root for family A.
func Root[A addrfam.Bits[A]]() StrideNodeID[A] {
	var zero A
	return StrideNodeID[A]{Net: zero, Len: 0}
}

// ChildID derives the StrideNodeID reached from s by consuming stride more
// bits of fullNet (the complete address bits of the prefix being walked).
func (s StrideNodeID[A]) ChildID(fullNet A, stride uint8) StrideNodeID[A] {
	newLen := s.Len + stride
	return StrideNodeID[A]{Net: fullNet.Truncate(newLen), Len: newLen}
}

func (s StrideNodeID[A]) String() string {
	return fmt.Sprintf("node(%v/%d)", s.Net, s.Len)
}
