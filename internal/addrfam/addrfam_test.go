// SPDX-License-Identifier: MIT

package addrfam

import (
	"net/netip"
	"testing"
)

func TestAddr4Nibble(t *testing.T) {
	a := Addr4FromNetip(netip.MustParseAddr("130.55.240.13"))

	tests := []struct {
		start, length uint8
		want          uint8
	}{
		{0, 8, 130},
		{8, 8, 55},
		{16, 8, 240},
		{24, 4, 0},
		{28, 4, 13},
		{0, 0, 0},
	}

	for _, tc := range tests {
		if got := a.Nibble(tc.start, tc.length); got != tc.want {
			t.Errorf("Nibble(%d,%d) = %d, want %d", tc.start, tc.length, got, tc.want)
		}
	}
}

func TestAddr4Truncate(t *testing.T) {
	a := Addr4FromNetip(netip.MustParseAddr("130.55.240.13"))

	tests := []struct {
		length uint8
		want   string
	}{
		{24, "130.55.240.0"},
		{0, "0.0.0.0"},
		{32, "130.55.240.13"},
	}

	for _, tc := range tests {
		got := a.Truncate(tc.length).ToNetipAddr()
		want := netip.MustParseAddr(tc.want)
		if got != want {
			t.Errorf("Truncate(%d) = %s, want %s", tc.length, got, want)
		}
	}
}

func TestAddr6NibbleAcrossBoundary(t *testing.T) {
	a := Addr6FromNetip(netip.MustParseAddr("2001:db8::1"))

	// bits [60,68) straddle the Hi/Lo word boundary.
	got := a.Nibble(60, 8)
	// recompute independently via full-width shifting for cross-check.
	hi, lo := a.Hi, a.Lo
	bitsFromHi := uint8(64 - 60)
	bitsFromLo := uint8(8) - bitsFromHi
	want := uint8((hi&(1<<bitsFromHi-1))<<bitsFromLo | lo>>(64-bitsFromLo))
	if got != want {
		t.Errorf("Nibble(60,8) = %d, want %d", got, want)
	}
}

func TestAddr6TruncateRoundTrip(t *testing.T) {
	want := netip.MustParsePrefix("2001:db8:1234::/40")
	a := Addr6FromNetip(want.Addr()).Truncate(uint8(want.Bits()))
	if got := a.ToNetipAddr(); got != want.Masked().Addr() {
		t.Errorf("Truncate round trip = %s, want %s", got, want.Masked().Addr())
	}
}

func TestAddr6Less(t *testing.T) {
	a := Addr6FromNetip(netip.MustParseAddr("::1"))
	b := Addr6FromNetip(netip.MustParseAddr("::2"))
	if !a.Less(b) || b.Less(a) {
		t.Errorf("Less ordering broken for ::1 vs ::2")
	}
}
