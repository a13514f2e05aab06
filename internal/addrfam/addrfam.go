// SPDX-License-Identifier: MIT

// Package addrfam implements the numeric-bitstring abstraction the trie
// core is built on: a fixed-width unsigned integer with bit-extraction of a
// contiguous nibble and truncation to a prefix length. It is instantiated
// twice, over a 32-bit integer for IPv4 and over a 128-bit pair for IPv6 —
// the address-family parameterization itself carries no trie logic.
package addrfam

import "net/netip"

// Bits is the numeric-bitstring contract the trie core depends on. T is the
// concrete address-family type (Addr4 or Addr6); the self-referencing type
// parameter is the common Go idiom for this kind of family-polymorphic
// value type (no interface boxing, no heap escape for the 128-bit case).
type Bits[T any] interface {
	comparable

	// Width reports the address family's bit width (32 or 128).
	Width() uint8

	// Nibble extracts the length-bit value starting at bit offset start,
	// counting from the most significant bit. length must be in [0, 8]
	// (the result is a uint8) and start+length must not exceed Width().
	Nibble(start, length uint8) uint8

	// Truncate zeroes every bit at position length and beyond, i.e. masks
	// the value down to its first length bits. length > Width() is a no-op.
	Truncate(length uint8) T

	// WithNibble returns a copy of the receiver with the length-bit field
	// starting at bit offset start replaced by value's low length bits.
	// Used to assemble candidate addresses while walking the bitmap's
	// own nibble space during more-specifics enumeration, independent of
	// any single search prefix's bits.
	WithNibble(start, length, value uint8) T

	// Less orders two values numerically; used to keep more-specifics in
	// ascending-prefix order (spec invariant I5).
	Less(other T) bool
}

// Family pairs a Bits implementation with its netip conversions. It is kept
// separate from Bits because conversions are only needed at the store's
// public boundary, never on the node hot path.
type Family[T Bits[T]] interface {
	Bits[T]
	ToNetipAddr() netip.Addr
}

// ToNetipAddrPrefix builds a netip.Prefix from a Family value already
// truncated to length, avoiding a second Truncate call at the public
// boundary where callers already hold a canonical (masked) value.
func ToNetipAddrPrefix[T Family[T]](f T, length uint8) netip.Prefix {
	return netip.PrefixFrom(f.ToNetipAddr(), int(length))
}
