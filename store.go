// SPDX-License-Identifier: MIT

package lpmtrie

import (
	"iter"
	"net/netip"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
	"github.com/tbitmap/lpmtrie/internal/epoch"
	"github.com/tbitmap/lpmtrie/internal/ids"
	"github.com/tbitmap/lpmtrie/internal/query"
	"github.com/tbitmap/lpmtrie/internal/store"
)

// MatchType mirrors the match_type returned to callers (spec.md §6).
type MatchType uint8

const (
	// ExactMatch: the returned prefix equals the query.
	ExactMatch MatchType = iota
	// LongestMatch: the returned prefix is a strict less-specific of the query.
	LongestMatch
	// EmptyMatch: no prefix was found (more-specifics may still be populated).
	EmptyMatch
)

// MatchOptions configures a MatchPrefix call (spec.md §6).
type MatchOptions struct {
	MatchType            query.MatchType
	IncludeLessSpecifics bool
	IncludeMoreSpecifics bool

	// IncludeAllRecords is reserved for future multi-record-per-prefix
	// semantics (spec.md §9's open question); the core currently ignores it.
	IncludeAllRecords bool
}

// Record pairs a resolved prefix with its metadata.
type Record[M any] struct {
	Prefix netip.Prefix
	Meta   M
}

// RecordSet is an ordered, resolved set of records (less- or
// more-specifics). Ordering follows spec.md I5: ascending length, ties
// broken by ascending numeric prefix.
type RecordSet[M any] struct {
	records []Record[M]
}

// Len reports the number of records in the set.
func (rs RecordSet[M]) Len() int { return len(rs.records) }

// IsEmpty reports whether the set has no records.
func (rs RecordSet[M]) IsEmpty() bool { return len(rs.records) == 0 }

// Seq ranges over the set's records in order.
func (rs RecordSet[M]) Seq() iter.Seq2[netip.Prefix, M] {
	return func(yield func(netip.Prefix, M) bool) {
		for _, r := range rs.records {
			if !yield(r.Prefix, r.Meta) {
				return
			}
		}
	}
}

// QueryResult is the outcome of a match/more-specifics/less-specifics call
// (spec.md §6).
type QueryResult[M any] struct {
	MatchType     MatchType
	Prefix        *netip.Prefix
	PrefixMeta    *M
	LessSpecifics RecordSet[M]
	MoreSpecifics RecordSet[M]
}

// Guard pins both address families' reclamation domains for the lifetime of
// a traversal (spec.md §5). Callers MAY share one Guard across several
// calls to avoid repeated pin/unpin overhead; a nil *Guard passed to any
// Store method causes that call to pin and unpin its own guard internally.
type Guard struct {
	v4 *epoch.Guard
	v6 *epoch.Guard
}

// Unpin releases the guard. Safe to call on a nil *Guard.
func (g *Guard) Unpin() {
	if g == nil {
		return
	}
	g.v4.Unpin()
	g.v6.Unpin()
}

type familyStore[A addrfam.Family[A], M Merger[M]] struct {
	nodes    *store.NodeMap[A]
	prefixes *store.PrefixMap[A, M]
	domain   *epoch.Domain
	strides  []uint8
}

// Store is the external façade of spec.md §6: a concurrent, lock-free
// longest-prefix-match store over both IPv4 and IPv6, parameterized by a
// user-supplied metadata type M.
type Store[M Merger[M]] struct {
	v4 familyStore[addrfam.Addr4, M]
	v6 familyStore[addrfam.Addr6, M]
}

// NewStore constructs a store with the given per-family stride sequences.
// A nil slice selects that family's default sequence (DefaultV4Strides /
// DefaultV6Strides). Strides must be in {3,4,5} and sum to 32 (v4) or 128
// (v6); a malformed sequence returns ErrInvalidStrides.
func NewStore[M Merger[M]](v4Strides, v6Strides []uint8) (*Store[M], error) {
	if v4Strides == nil {
		v4Strides = DefaultV4Strides
	}
	if v6Strides == nil {
		v6Strides = DefaultV6Strides
	}
	if err := validateStrides(v4Strides, 32); err != nil {
		return nil, err
	}
	if err := validateStrides(v6Strides, 128); err != nil {
		return nil, err
	}

	v4Domain := epoch.NewDomain()
	v6Domain := epoch.NewDomain()

	s := &Store[M]{
		v4: familyStore[addrfam.Addr4, M]{
			nodes:    &store.NodeMap[addrfam.Addr4]{},
			prefixes: store.NewPrefixMap[addrfam.Addr4, M](v4Domain),
			domain:   v4Domain,
			strides:  cloneStrides(v4Strides),
		},
		v6: familyStore[addrfam.Addr6, M]{
			nodes:    &store.NodeMap[addrfam.Addr6]{},
			prefixes: store.NewPrefixMap[addrfam.Addr6, M](v6Domain),
			domain:   v6Domain,
			strides:  cloneStrides(v6Strides),
		},
	}
	s.v4.nodes.Root(s.v4.strides[0])
	s.v6.nodes.Root(s.v6.strides[0])
	return s, nil
}

// Strides reports the configured stride sequences.
func (s *Store[M]) Strides() (v4, v6 []uint8) {
	return cloneStrides(s.v4.strides), cloneStrides(s.v6.strides)
}

// Stats reports occupancy counters (spec.md §9: statistics beyond simple
// counters are out of scope).
type Stats struct {
	V4Nodes, V4Prefixes, V4Children int
	V6Nodes, V6Prefixes, V6Children int
}

// Stats aggregates node and prefix occupancy across both families.
func (s *Store[M]) Stats() Stats {
	var st Stats
	st.V4Nodes, _, st.V4Children = s.v4.nodes.Stats()
	st.V4Prefixes = s.v4.prefixes.Count()
	st.V6Nodes, _, st.V6Children = s.v6.nodes.Stats()
	st.V6Prefixes = s.v6.prefixes.Count()
	return st
}

// PinGuard pins a guard usable across several subsequent calls.
func (s *Store[M]) PinGuard() *Guard {
	return &Guard{v4: s.v4.domain.Pin(), v6: s.v6.domain.Pin()}
}

// Insert publishes prefix with the given metadata, merging it into any
// record already present at that prefix via M's MergeUpdate.
func (s *Store[M]) Insert(prefix netip.Prefix, meta M, userIn any) error {
	prefix = prefix.Masked()
	addr := prefix.Addr()
	length := uint8(prefix.Bits())

	if addr.Is4() {
		rec := store.PrefixRecord[addrfam.Addr4, M]{Net: addrfam.Addr4FromNetip(addr), Len: length, Meta: meta}
		return query.Insert(s.v4.nodes, s.v4.prefixes, s.v4.strides, rec, userIn)
	}
	rec := store.PrefixRecord[addrfam.Addr6, M]{Net: addrfam.Addr6FromNetip(addr), Len: length, Meta: meta}
	return query.Insert(s.v6.nodes, s.v6.prefixes, s.v6.strides, rec, userIn)
}

// MatchPrefix performs the stride-walker query of spec.md §4.4. A nil guard
// pins and unpins its own internal guard for the duration of the call.
func (s *Store[M]) MatchPrefix(prefix netip.Prefix, opts MatchOptions, guard *Guard) QueryResult[M] {
	if guard == nil {
		guard = s.PinGuard()
		defer guard.Unpin()
	}

	addr := prefix.Addr()
	length := uint8(prefix.Bits())

	if length == 0 {
		return s.matchDefaultRoute(addr.Is4(), opts)
	}
	if addr.Is4() {
		return matchFamily(&s.v4, length, addrfam.Addr4FromNetip(addr), opts)
	}
	return matchFamily(&s.v6, length, addrfam.Addr6FromNetip(addr), opts)
}

func (s *Store[M]) matchDefaultRoute(v4 bool, opts MatchOptions) QueryResult[M] {
	if v4 {
		return resolveDefaultRoute(s.v4.prefixes, netip.IPv4Unspecified(), opts)
	}
	return resolveDefaultRoute(s.v6.prefixes, netip.IPv6Unspecified(), opts)
}

func resolveDefaultRoute[A addrfam.Family[A], M Merger[M]](prefixes *store.PrefixMap[A, M], zero netip.Addr, opts MatchOptions) QueryResult[M] {
	var id ids.PrefixID[A]
	rec, _ := prefixes.Load(id)
	if rec == nil {
		return QueryResult[M]{MatchType: EmptyMatch}
	}
	pfx := netip.PrefixFrom(zero, 0)
	return QueryResult[M]{MatchType: ExactMatch, Prefix: &pfx, PrefixMeta: &rec.Meta}
}

func matchFamily[A addrfam.Family[A], M Merger[M]](fs *familyStore[A, M], length uint8, net A, opts MatchOptions) QueryResult[M] {
	candidate, less, more := query.MatchPrefix(fs.nodes, fs.strides, net, length, opts.MatchType, opts.IncludeLessSpecifics, opts.IncludeMoreSpecifics)

	result := QueryResult[M]{MatchType: EmptyMatch}
	if candidate == nil {
		if opts.IncludeMoreSpecifics {
			result.MoreSpecifics = resolveSet(fs.prefixes, more)
		}
		return result
	}

	rec, _ := fs.prefixes.Load(*candidate)
	if rec == nil {
		return result // internal inconsistency: a candidate id with no published record
	}

	pfx := addrfam.ToNetipAddrPrefix[A](rec.Net, rec.Len)
	result.Prefix = &pfx
	result.PrefixMeta = &rec.Meta
	if candidate.Len == length {
		result.MatchType = ExactMatch
	} else {
		result.MatchType = LongestMatch
	}
	if opts.IncludeLessSpecifics {
		result.LessSpecifics = resolveSet(fs.prefixes, less)
	}
	if opts.IncludeMoreSpecifics {
		result.MoreSpecifics = resolveSet(fs.prefixes, more)
	}
	return result
}

func resolveSet[A addrfam.Family[A], M Merger[M]](prefixes *store.PrefixMap[A, M], idList []ids.PrefixID[A]) RecordSet[M] {
	records := make([]Record[M], 0, len(idList))
	for _, id := range idList {
		rec, _ := prefixes.Load(id)
		if rec == nil {
			continue
		}
		records = append(records, Record[M]{Prefix: addrfam.ToNetipAddrPrefix[A](rec.Net, rec.Len), Meta: rec.Meta})
	}
	return RecordSet[M]{records: records}
}

// MoreSpecificsFrom returns every inserted prefix strictly more specific
// than the (already-present) anchor prefix, in ascending length-then-nibble
// order. ErrPrefixNotFound if the anchor itself was never inserted.
func (s *Store[M]) MoreSpecificsFrom(anchor netip.Prefix, guard *Guard) (QueryResult[M], error) {
	return s.anchoredQuery(anchor, guard, false, true)
}

// LessSpecificsFrom returns every inserted prefix strictly less specific
// than the (already-present) anchor prefix, in ascending length order.
// ErrPrefixNotFound if the anchor itself was never inserted.
func (s *Store[M]) LessSpecificsFrom(anchor netip.Prefix, guard *Guard) (QueryResult[M], error) {
	return s.anchoredQuery(anchor, guard, true, false)
}

func (s *Store[M]) anchoredQuery(anchor netip.Prefix, guard *Guard, includeLess, includeMore bool) (QueryResult[M], error) {
	opts := MatchOptions{MatchType: query.Exact, IncludeLessSpecifics: includeLess, IncludeMoreSpecifics: includeMore}
	result := s.MatchPrefix(anchor, opts, guard)
	if result.MatchType != ExactMatch {
		return QueryResult[M]{MatchType: EmptyMatch}, ErrPrefixNotFound
	}
	return result, nil
}

// PrefixesIter ranges over every published prefix across both families.
func (s *Store[M]) PrefixesIter() iter.Seq2[netip.Prefix, M] {
	return func(yield func(netip.Prefix, M) bool) {
		stop := false
		s.v4.prefixes.Range(func(_ ids.PrefixID[addrfam.Addr4], rec *store.PrefixRecord[addrfam.Addr4, M]) bool {
			if !yield(addrfam.ToNetipAddrPrefix[addrfam.Addr4](rec.Net, rec.Len), rec.Meta) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
		s.v6.prefixes.Range(func(_ ids.PrefixID[addrfam.Addr6], rec *store.PrefixRecord[addrfam.Addr6, M]) bool {
			return yield(addrfam.ToNetipAddrPrefix[addrfam.Addr6](rec.Net, rec.Len), rec.Meta)
		})
	}
}
