// SPDX-License-Identifier: MIT

package query

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
	"github.com/tbitmap/lpmtrie/internal/epoch"
	"github.com/tbitmap/lpmtrie/internal/ids"
	"github.com/tbitmap/lpmtrie/internal/store"
)

// v4Strides matches this module's chosen IPv4 default (see DESIGN.md).
var v4Strides = []uint8{5, 5, 4, 3, 3, 3, 3, 3, 3}

type overwriteLatest struct{ value int }

func (overwriteLatest) MergeUpdate(update overwriteLatest, _ any) (overwriteLatest, error) {
	return update, nil
}

func (overwriteLatest) CloneMergeUpdate(update overwriteLatest, _ any) (overwriteLatest, error) {
	return overwriteLatest{value: update.value}, nil
}

func mustPrefix(t *testing.T, s string) (addrfam.Addr4, uint8) {
	t.Helper()
	p := netip.MustParsePrefix(s)
	return addrfam.Addr4FromNetip(p.Addr()), uint8(p.Bits())
}

func newHarness() (*store.NodeMap[addrfam.Addr4], *store.PrefixMap[addrfam.Addr4, overwriteLatest]) {
	nodes := &store.NodeMap[addrfam.Addr4]{}
	prefixes := store.NewPrefixMap[addrfam.Addr4, overwriteLatest](epoch.NewDomain())
	return nodes, prefixes
}

func insert(t *testing.T, nodes *store.NodeMap[addrfam.Addr4], prefixes *store.PrefixMap[addrfam.Addr4, overwriteLatest], cidr string, v int) {
	t.Helper()
	net, length := mustPrefix(t, cidr)
	rec := store.PrefixRecord[addrfam.Addr4, overwriteLatest]{Net: net, Len: length, Meta: overwriteLatest{value: v}}
	require.NoError(t, Insert(nodes, prefixes, v4Strides, rec, nil))
}

func TestScenario1ExactMatchWithMoreSpecifics(t *testing.T) {
	nodes, prefixes := newHarness()
	insert(t, nodes, prefixes, "130.55.240.0/24", 1)
	insert(t, nodes, prefixes, "130.55.240.0/25", 2)
	insert(t, nodes, prefixes, "130.55.240.128/25", 3)
	insert(t, nodes, prefixes, "130.55.240.192/26", 4)

	net, length := mustPrefix(t, "130.55.240.0/24")
	candidate, _, more := MatchPrefix(nodes, v4Strides, net, length, Exact, false, true)

	require.NotNil(t, candidate)
	assert.EqualValues(t, 24, candidate.Len)
	require.Len(t, more, 3)
	assert.EqualValues(t, 25, more[0].Len)
	assert.EqualValues(t, 25, more[1].Len)
	assert.EqualValues(t, 26, more[2].Len)
}

func TestScenario2ExactMatchMissIsEmpty(t *testing.T) {
	nodes, prefixes := newHarness()
	insert(t, nodes, prefixes, "130.55.240.0/24", 1)
	insert(t, nodes, prefixes, "130.55.240.0/25", 2)
	insert(t, nodes, prefixes, "130.55.240.128/25", 3)
	insert(t, nodes, prefixes, "130.55.240.192/26", 4)

	net, length := mustPrefix(t, "130.55.240.0/23")
	candidate, _, _ := MatchPrefix(nodes, v4Strides, net, length, Exact, false, false)
	assert.Nil(t, candidate)
}

func TestScenario4LongestMatchReportsMoreSpecificsAnchoredAtQuery(t *testing.T) {
	nodes, prefixes := newHarness()
	insert(t, nodes, prefixes, "17.0.0.0/8", 1)
	insert(t, nodes, prefixes, "17.0.64.0/18", 2)
	insert(t, nodes, prefixes, "17.0.109.0/24", 3)

	net, length := mustPrefix(t, "17.0.0.0/9")
	candidate, _, more := MatchPrefix(nodes, v4Strides, net, length, Longest, false, true)

	require.NotNil(t, candidate)
	assert.EqualValues(t, 8, candidate.Len) // strict less-specific of the query
	require.Len(t, more, 2)                 // every inserted prefix strictly under the query

	// collectMoreSpecifics is a breadth-first drain that appends each
	// node's own local hits (themselves produced by an ascending-msLen
	// loop) before ever visiting a queued child, so the two entries here
	// are not just a set but a fully determined ascending-length sequence
	// (spec invariant I5) — assert the exact order, not just membership.
	gotLens := []uint8{more[0].Len, more[1].Len}
	if diff := cmp.Diff([]uint8{18, 24}, gotLens); diff != "" {
		t.Errorf("more-specifics length order mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario5UpsertMergesMetaOverwriteLatest(t *testing.T) {
	nodes, prefixes := newHarness()
	insert(t, nodes, prefixes, "10.0.0.0/8", 1)
	insert(t, nodes, prefixes, "10.0.0.0/8", 2)

	net, length := mustPrefix(t, "10.0.0.0/8")
	rec, serial := prefixes.Load(ids.NewPrefixID(net, length))
	require.NotNil(t, rec)
	assert.EqualValues(t, 2, serial)
	assert.Equal(t, 2, rec.Meta.value)
}

func TestLessSpecificsOnlyReportedAlongsideSuccessfulExactMatch(t *testing.T) {
	nodes, prefixes := newHarness()
	insert(t, nodes, prefixes, "17.0.0.0/8", 1)
	insert(t, nodes, prefixes, "17.0.0.0/9", 2)

	net, length := mustPrefix(t, "17.0.0.0/9")
	candidate, less, _ := MatchPrefix(nodes, v4Strides, net, length, Exact, true, false)
	require.NotNil(t, candidate)
	require.Len(t, less, 1)
	assert.EqualValues(t, 8, less[0].Len)

	// A query one bit off, with no exact match at the end, must report no
	// less-specifics even though /8 is a true ancestor in the trie.
	net2, length2 := mustPrefix(t, "17.0.0.0/10")
	candidate2, less2, _ := MatchPrefix(nodes, v4Strides, net2, length2, Exact, true, false)
	assert.Nil(t, candidate2)
	assert.Empty(t, less2)
}

func TestDefaultRouteBypassesTrieWalk(t *testing.T) {
	nodes, prefixes := newHarness()
	rec := store.PrefixRecord[addrfam.Addr4, overwriteLatest]{Net: 0, Len: 0, Meta: overwriteLatest{value: 99}}
	require.NoError(t, Insert(nodes, prefixes, v4Strides, rec, nil))

	got, serial := prefixes.Load(ids.NewPrefixID[addrfam.Addr4](0, 0))
	require.NotNil(t, got)
	assert.EqualValues(t, 1, serial)
	assert.Equal(t, 99, got.Meta.value)

	// The root node itself was never touched: inserting the default route
	// must not have flipped any pfxbitarr bit (spec.md §3).
	root := nodes.Load(ids.Root[addrfam.Addr4]())
	if root != nil {
		assert.Equal(t, 0, root.PrefixCount())
	}
}
