// SPDX-License-Identifier: MIT

// Package query implements the stride walker of spec.md §4.4: the engine
// that descends a trie built from internal/node nodes and internal/store
// maps to compute insertions, exact/longest/empty matches, and the
// associated less/more-specific sets, preserving the ordering guarantees of
// spec.md I5.
package query

import (
	"slices"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
	"github.com/tbitmap/lpmtrie/internal/ids"
	"github.com/tbitmap/lpmtrie/internal/node"
	"github.com/tbitmap/lpmtrie/internal/store"
)

// MatchType mirrors spec.md §6's match_type enum.
type MatchType uint8

const (
	Exact MatchType = iota
	Longest
	Empty
)

// Insert is the insert data flow of spec.md §2/§4.2: it publishes record in
// prefixes first (publish-then-advertise, spec.md §5), then walks the
// configured strides flipping pfxbitarr/ptrbitarr bits, publishing any new
// intermediate node before advertising it via its parent's ptrbitarr bit so
// a concurrent reader never observes a set bit with nothing behind it.
// record.Len == 0 (the default route) is handled without any trie walk at
// all, per spec.md §3's "not encoded in pfxbitarr of the root".
func Insert[A addrfam.Bits[A], M store.Merger[M]](
	nodes *store.NodeMap[A], prefixes *store.PrefixMap[A, M], strides []uint8,
	record store.PrefixRecord[A, M], userIn any,
) error {
	if record.Len == 0 {
		return prefixes.Upsert(record, userIn)
	}
	if err := prefixes.Upsert(record, userIn); err != nil {
		return err
	}

	fullNet := record.Net
	base := ids.Root[A]()
	cur := nodes.Root(strides[0])

	end := uint8(0)
	for i, s := range strides {
		end += s
		terminal := record.Len <= end
		nibbleLen := s
		if terminal {
			nibbleLen = s - (end - record.Len)
		}
		nibble := fullNet.Nibble(end-s, nibbleLen)

		if terminal {
			cur.EvalNodeOrPrefixAt(base, fullNet, nibble, nibbleLen, true)
			return nil
		}

		nextStride := strides[i+1]
		childID := base.ChildID(fullNet, s)
		child := nodes.StoreNode(childID, node.New[A](nextStride))
		cur.EvalNodeOrPrefixAt(base, fullNet, nibble, nibbleLen, false)
		cur, base = child, childID
	}
	return nil
}

// MatchPrefix is the search data flow of spec.md §4.4. net/searchLen is the
// query prefix (already assumed non-default-route; callers handle length-0
// queries against the dedicated default-route slot themselves, per
// spec.md §3). It returns the longest/exact/empty candidate found plus,
// when requested, the less- and more-specific id sets in the ascending
// orders spec.md I5 requires.
func MatchPrefix[A addrfam.Bits[A]](
	nodes *store.NodeMap[A], strides []uint8, net A, searchLen uint8,
	matchType MatchType, includeLess, includeMore bool,
) (candidate *ids.PrefixID[A], less, more []ids.PrefixID[A]) {
	base := ids.Root[A]()
	cur := nodes.Load(base)
	if cur == nil {
		return nil, nil, nil
	}

	strideEnd := uint8(0)
	for _, s := range strides {
		strideEnd += s
		// last is true once this stride reaches or passes the query's own
		// bit length — "or passes" matters at the exact boundary case
		// (searchLen == strideEnd), where the next stride would otherwise
		// be asked to match a zero-length nibble.
		last := searchLen <= strideEnd
		nibbleLen := s
		if last {
			nibbleLen = s - (strideEnd - searchLen)
		}
		nibble := net.Nibble(strideEnd-s, nibbleLen)

		var child *ids.StrideNodeID[A]
		var pfx *ids.PrefixID[A]

		switch {
		case matchType == Exact && includeLess:
			child, pfx = cur.SearchExactMatchWithLessSpecificsAt(base, net, nibble, nibbleLen, searchLen, &less)
		case matchType == Exact:
			child, pfx = cur.SearchExactMatchAt(base, net, nibble, nibbleLen, searchLen)
		default: // Longest, Empty
			var lessArg *[]ids.PrefixID[A]
			if includeLess {
				lessArg = &less
			}
			child, pfx = cur.SearchLongestMatchAt(base, net, nibble, nibbleLen, searchLen, lessArg)
		}

		switch {
		case pfx != nil && child == nil:
			candidate = pfx
			if includeMore {
				more = collectMoreSpecifics(nodes, cur, base, nibble, nibbleLen)
			}
			return

		case pfx == nil && child == nil:
			if matchType == Empty && includeMore {
				more = collectMoreSpecifics(nodes, cur, base, nibble, nibbleLen)
			}
			if matchType == Exact || matchType == Empty {
				// A dead end discards any candidate an earlier stride
				// accumulated while still holding a live child (spec.md
				// §4.4 step 3d): Empty's contract is "no match", not
				// "whatever Longest would have returned along the way".
				candidate = nil
				less = nil
			}
			return

		default:
			// child != nil: pfx may or may not also be set (longest-match
			// keeps updating candidate as it descends).
			if pfx != nil {
				candidate = pfx
			}
			if last && includeMore {
				more = collectMoreSpecifics(nodes, cur, base, nibble, nibbleLen)
				return
			}
			next := nodes.Load(*child)
			if next == nil {
				return // internal inconsistency: advertised child never published
			}
			cur, base = next, *child
		}
	}
	return
}

// collectMoreSpecifics drains add_more_specifics_at (spec.md §4.3) starting
// at (base, nibble, nibbleLen) inside start, then breadth-first over every
// descendant it names. The drain appends each node's hits as one block, so
// hits of sibling nodes on the same level interleave in length; the result
// is therefore sorted into the ascending length-then-nibble order spec.md
// I5 requires (ties on length broken by Bits.Less).
func collectMoreSpecifics[A addrfam.Bits[A]](
	nodes *store.NodeMap[A], start *node.Node[A], base ids.StrideNodeID[A], nibble, nibbleLen uint8,
) []ids.PrefixID[A] {
	type frontier struct {
		n    *node.Node[A]
		base ids.StrideNodeID[A]
	}

	var more []ids.PrefixID[A]
	children, local := start.AddMoreSpecificsAt(base, nibble, nibbleLen)
	more = append(more, local...)

	queue := make([]frontier, 0, len(children))
	for _, cid := range children {
		if cn := nodes.Load(cid); cn != nil {
			queue = append(queue, frontier{n: cn, base: cid})
		}
	}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		grandchildren, localMore := f.n.AddMoreSpecificsAt(f.base, 0, 0)
		more = append(more, localMore...)
		for _, cid := range grandchildren {
			if cn := nodes.Load(cid); cn != nil {
				queue = append(queue, frontier{n: cn, base: cid})
			}
		}
	}
	slices.SortFunc(more, func(a, b ids.PrefixID[A]) int {
		switch {
		case a.Len != b.Len:
			return int(a.Len) - int(b.Len)
		case a.Net.Less(b.Net):
			return -1
		case b.Net.Less(a.Net):
			return 1
		}
		return 0
	})
	return more
}
