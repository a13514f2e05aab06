// SPDX-License-Identifier: MIT

// Package epoch implements a small epoch-based reclamation domain, the
// mechanism spec.md §5/§9 calls for instead of locks or a garbage collector
// pass: readers pin the domain's current epoch for the duration of a
// traversal, writers retire replaced records into the domain rather than
// freeing them immediately, and the domain only finalizes a batch of
// retired records once every pinned reader has observed a later epoch.
//
// No repo in the retrieved example pack imports a ready-made hazard-pointer
// or epoch-GC library (see DESIGN.md), so this is hand-rolled on top of
// sync/atomic only, per spec.md §9's explicit "or hand-roll a
// hazard-pointer scheme" fallback. It deliberately avoids mutexes on the
// pin/unpin/retire paths. Pin allocates a Guard, plus a new registry slot
// when no existing slot is free; Retire allocates one garbage-list node.
package epoch

import "sync/atomic"

// bucketCount is the number of generations of retired garbage kept before
// reclamation. Three is the standard epoch-GC figure: "current", "previous"
// and "the one a fully-advanced reader can no longer see".
const bucketCount = 3

// Domain owns the global epoch counter, the registry of pinned readers, and
// the retired-object buckets for one store.
type Domain struct {
	global  atomic.Uint64
	slots   atomic.Pointer[slot]
	buckets [bucketCount]garbageList
}

// NewDomain returns a ready-to-use reclamation domain.
func NewDomain() *Domain {
	return &Domain{}
}

// slot is one reader's pin state, kept in a lock-free free-list so
// goroutines can reuse slots instead of allocating one per call to Pin.
type slot struct {
	// pinnedEpoch holds (epoch+1) while pinned, 0 while free/unpinned.
	pinnedEpoch atomic.Uint64
	inUse       atomic.Bool
	next        *slot
}

// Guard pins the domain's epoch for the lifetime of one traversal. Callers
// MUST call Unpin when done; Guard carries no finalizer because the whole
// point of epoch GC is to avoid relying on the garbage collector for
// correctness-critical timing.
type Guard struct {
	domain *Domain
	slot   *slot
}

// Pin acquires a guard pinning the domain's current epoch. Reclamation of
// any object retired after this call returns is deferred until after the
// guard is unpinned and the domain has advanced past it.
func (d *Domain) Pin() *Guard {
	s := d.acquireSlot()
	e := d.global.Load()
	s.pinnedEpoch.Store(e + 1)
	return &Guard{domain: d, slot: s}
}

// Unpin releases the guard's pin. The slot is returned to the free list for
// reuse by a later Pin call.
func (g *Guard) Unpin() {
	if g == nil || g.slot == nil {
		return
	}
	g.slot.pinnedEpoch.Store(0)
	g.slot.inUse.Store(false)
}

// acquireSlot finds a free slot in the registry or pushes a new one.
func (d *Domain) acquireSlot() *slot {
	for s := d.slots.Load(); s != nil; s = s.next {
		if !s.inUse.Load() && s.inUse.CompareAndSwap(false, true) {
			return s
		}
	}

	s := &slot{}
	s.inUse.Store(true)
	for {
		head := d.slots.Load()
		s.next = head
		if d.slots.CompareAndSwap(head, s) {
			return s
		}
	}
}

// minPinnedEpoch returns the lowest epoch any live guard is pinned at, or
// the current global epoch if nothing is pinned.
func (d *Domain) minPinnedEpoch() uint64 {
	min := d.global.Load()
	for s := d.slots.Load(); s != nil; s = s.next {
		if e := s.pinnedEpoch.Load(); e != 0 && e-1 < min {
			min = e - 1
		}
	}
	return min
}

// Retire schedules obj for reclamation once no guard can still observe it.
// finalize is called exactly once, from a later call to Retire or
// TryAdvance, never concurrently with itself.
func (d *Domain) Retire(obj any, finalize func(any)) {
	cur := d.global.Load()
	d.buckets[cur%bucketCount].push(&garbageNode{obj: obj, finalize: finalize})
	d.TryAdvance()
}

// TryAdvance attempts to bump the global epoch by one. It only succeeds if
// every pinned reader has already observed the current epoch, which
// guarantees that the bucket two generations behind the new epoch is no
// longer reachable by any live guard, and drains that bucket.
//
// This is best-effort and non-blocking: if a slow reader is still pinned at
// an old epoch, TryAdvance simply declines to advance and garbage
// accumulates a little longer. It never blocks a writer.
func (d *Domain) TryAdvance() bool {
	cur := d.global.Load()
	if d.minPinnedEpoch() < cur {
		return false
	}
	if !d.global.CompareAndSwap(cur, cur+1) {
		return false
	}
	// The bucket for epoch (cur+1)-(bucketCount-1) is now unreachable by
	// any guard that could still pin: guards only ever observe epochs in
	// {cur-1, cur, cur+1} once advanced this far.
	stale := (cur + 1 + 1) % bucketCount
	d.buckets[stale].drain()
	return true
}

type garbageNode struct {
	obj      any
	finalize func(any)
	next     *garbageNode
}

// garbageList is a lock-free Treiber stack of retired objects awaiting
// reclamation for one epoch generation.
type garbageList struct {
	head atomic.Pointer[garbageNode]
}

func (g *garbageList) push(n *garbageNode) {
	for {
		head := g.head.Load()
		n.next = head
		if g.head.CompareAndSwap(head, n) {
			return
		}
	}
}

func (g *garbageList) drain() {
	n := g.head.Swap(nil)
	for n != nil {
		if n.finalize != nil {
			n.finalize(n.obj)
		}
		n = n.next
	}
}
