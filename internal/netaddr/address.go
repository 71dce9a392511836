package netaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ErrInvalidAddress is returned when a string is not an IPv4 or IPv6 address.
var ErrInvalidAddress = errors.New("netaddr: invalid IP address")

// Address is an IPv4 or IPv6 address. The zero value is the undefined
// address. Address values are comparable and usable as map keys.
type Address struct {
	ip netip.Addr
}

// ParseAddress parses an IPv4 dotted quad or an IPv6 address.
// IPv4-mapped IPv6 addresses are reduced to IPv4.
func ParseAddress(s string) (Address, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{ip: ip.Unmap().WithZone("")}, nil
}

// MustParseAddress is ParseAddress that panics on error. Intended for tests
// and static tables.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromNetAddr extracts the peer address of an accepted connection.
// It returns the undefined address for non-IP network addresses.
func FromNetAddr(addr net.Addr) Address {
	switch a := addr.(type) {
	case *net.TCPAddr:
		if ip, ok := netip.AddrFromSlice(a.IP); ok {
			return Address{ip: ip.Unmap()}
		}
	case *net.UDPAddr:
		if ip, ok := netip.AddrFromSlice(a.IP); ok {
			return Address{ip: ip.Unmap()}
		}
	}
	if addr == nil {
		return Address{}
	}
	if ap, err := netip.ParseAddrPort(addr.String()); err == nil {
		return Address{ip: ap.Addr().Unmap().WithZone("")}
	}
	return Address{}
}

// IsValid reports whether the address is defined.
func (a Address) IsValid() bool { return a.ip.IsValid() }

// Is4 reports whether a is an IPv4 address.
func (a Address) Is4() bool { return a.ip.Is4() }

// Is6 reports whether a is an IPv6 address.
func (a Address) Is6() bool { return a.ip.Is6() }

// Version returns 4, 6, or 0 for the undefined address.
func (a Address) Version() int {
	switch {
	case a.ip.Is4():
		return 4
	case a.ip.Is6():
		return 6
	default:
		return 0
	}
}

// Compare orders addresses: undefined < IPv4 < IPv6, then numerically.
func (a Address) Compare(b Address) int { return a.ip.Compare(b.ip) }

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// String returns the textual form, or "" for the undefined address.
func (a Address) String() string {
	if !a.ip.IsValid() {
		return ""
	}
	return a.ip.String()
}

// Netip returns the underlying netip.Addr.
func (a Address) Netip() netip.Addr { return a.ip }

// Resolve performs a reverse DNS lookup and returns the first host name.
func (a Address) Resolve(ctx context.Context) (string, error) {
	if !a.IsValid() {
		return "", ErrInvalidAddress
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, a.String())
	if err != nil {
		return "", fmt.Errorf("reverse lookup %s: %w", a, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("reverse lookup %s: no names", a)
	}
	return strings.TrimSuffix(names[0], "."), nil
}
