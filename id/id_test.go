package id

import "testing"

func TestRawIDStringRoundTrip(t *testing.T) {
	cases := []RawID{
		New(0, 0, 0, 0),
		New(7, 42, 3, 1),
		New(0xFFFF, 0xFFFFFFFE, 0xFE, 0xFF),
	}
	for _, want := range cases {
		s := want.String()
		got, err := ParseRawID(s)
		if err != nil {
			t.Fatalf("ParseRawID(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: %+v -> %q -> %+v", want, s, got)
		}
	}
}

func TestRawIDStringFormat(t *testing.T) {
	r := New(0x12, 0x34, 0x56, 0x78)
	got := r.String()
	want := "12_34.78@56"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestBroadcastSentinels(t *testing.T) {
	r := New(5, 9, 2, 0)
	lb := r.LocalBroadcast()
	if !lb.IsBroadcast() {
		t.Fatal("LocalBroadcast() should be a broadcast id")
	}
	if lb.IsGlobalBroadcast() {
		t.Fatal("LocalBroadcast() should not be global")
	}
	gb := r.GlobalBroadcast()
	if !gb.IsBroadcast() || !gb.IsGlobalBroadcast() {
		t.Fatal("GlobalBroadcast() should be both broadcast and global")
	}
	if r.IsBroadcast() {
		t.Fatal("a plain instance id should not report as broadcast")
	}
}

func TestParseRawIDRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "not-an-id", "1_2.3", "ZZ_1.1@1"} {
		if _, err := ParseRawID(bad); err == nil {
			t.Fatalf("ParseRawID(%q) should have failed", bad)
		}
	}
}
