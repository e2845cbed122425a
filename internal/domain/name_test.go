package domain

import "testing"

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"2001:db8::0212", "mote-0212"},
		{"2001:db8::212", "mote-0212"},
		{"fe80::1", "mote-0001"},
		{"fe80::1%lowpan0", "mote-0001"},
		{"2001:db8::abcd", "mote-abcd"},
		{"2001:db8::ABCD", "mote-abcd"},
		{"[2001:db8::beef]:5683", "mote-beef"},
		{"10.0.2.18", "mote-0212"},
		{"aaaa::212:7402:2:202", "mote-0202"},
		{"not-an-address:12", "mote-0012"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			if got := CanonicalName(tt.address); got != tt.want {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}

func TestCanonicalNameDeterministic(t *testing.T) {
	const address = "2001:db8::c0ff:ee"
	first := CanonicalName(address)
	for i := 0; i < 10; i++ {
		if got := CanonicalName(address); got != first {
			t.Fatalf("CanonicalName changed between calls: %q then %q", first, got)
		}
	}
}

func TestNeighborKey(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"2001:db8::ab12", "AB12"},
		{"2001:db8::212", "0212"},
		{"10.0.171.18", "AB12"},
	}

	for _, tt := range tests {
		if got := NeighborKey(tt.address); got != tt.want {
			t.Errorf("NeighborKey(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestIsUnspecified(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"::", true},
		{"::1", true},
		{"::ffff:10.0.0.1", true},
		{"2001:db8::1", false},
		{"fe80::1", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsUnspecified(tt.address); got != tt.want {
			t.Errorf("IsUnspecified(%q) = %v, want %v", tt.address, got, tt.want)
		}
	}
}
