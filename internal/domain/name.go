package domain

import (
	"fmt"
	"net/netip"
	"strings"
)

// HostNamePrefix prefixes every canonical mote name
const HostNamePrefix = "mote-"

// CanonicalName derives a mote's display name from its network address
func CanonicalName(address string) string {
	return HostNamePrefix + lastFourHex(address)
}

// NeighborKey returns the short identifier firmware uses for a neighbor with
// the given address. It is the same 16 bits as the canonical name, upper-cased.
func NeighborKey(address string) string {
	return strings.ToUpper(lastFourHex(address))
}

// lastFourHex extracts the trailing 16 bits of address as four hex digits
func lastFourHex(address string) string {
	if addr, ok := parseAddr(address); ok {
		b := addr.As16()
		return fmt.Sprintf("%02x%02x", b[14], b[15])
	}

	segment := address
	if i := strings.LastIndexAny(segment, ":."); i >= 0 {
		segment = segment[i+1:]
	}
	if len(segment) < 4 {
		segment = strings.Repeat("0", 4-len(segment)) + segment
	}
	return segment[len(segment)-4:]
}

// parseAddr accepts a bare address, an address with a zone, or host:port
func parseAddr(address string) (netip.Addr, bool) {
	if addr, err := netip.ParseAddr(address); err == nil {
		return addr.WithZone(""), true
	}
	if ap, err := netip.ParseAddrPort(address); err == nil {
		return ap.Addr().WithZone(""), true
	}
	return netip.Addr{}, false
}
