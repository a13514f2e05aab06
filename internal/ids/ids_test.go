// SPDX-License-Identifier: MIT

package ids

import (
	"net/netip"
	"testing"

	"github.com/tbitmap/lpmtrie/internal/addrfam"
)

func TestPrefixIDCanonicalization(t *testing.T) {
	net := addrfam.Addr4FromNetip(netip.MustParseAddr("10.1.2.3"))
	id := NewPrefixID(net, 8)

	want := addrfam.Addr4FromNetip(netip.MustParseAddr("10.0.0.0"))
	if id.Net != want || id.Len != 8 {
		t.Errorf("NewPrefixID = %v/%d, want %v/8", id.Net, id.Len, want)
	}
}

func TestDefaultRoute(t *testing.T) {
	id := NewPrefixID(addrfam.Addr4(0), 0)
	if !id.IsDefaultRoute() {
		t.Errorf("expected (0,0) to be the default route")
	}
	if !NewPrefixID(addrfam.Addr4(1), 0).IsDefaultRoute() {
		t.Errorf("NewPrefixID truncates a non-zero net at length 0 to the default route")
	}
}

func TestStrideNodeIDChildID(t *testing.T) {
	full := addrfam.Addr4FromNetip(netip.MustParseAddr("130.55.240.13"))
	root := Root[addrfam.Addr4]()

	child := root.ChildID(full, 8)
	if child.Len != 8 {
		t.Fatalf("Len = %d, want 8", child.Len)
	}

	grandchild := child.ChildID(full, 8)
	if grandchild.Len != 16 {
		t.Fatalf("Len = %d, want 16", grandchild.Len)
	}
	want := addrfam.Addr4FromNetip(netip.MustParseAddr("130.55.0.0"))
	if grandchild.Net != want {
		t.Errorf("Net = %v, want %v", grandchild.Net, want)
	}
}
