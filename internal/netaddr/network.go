package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ErrInvalidNetwork is returned when a string is not a valid network.
var ErrInvalidNetwork = errors.New("netaddr: invalid network")

// Network is an address plus a prefix length.
type Network struct {
	addr Address
	bits int
}

// NewNetwork builds a network from an address and prefix length.
func NewNetwork(addr Address, bits int) (Network, error) {
	if !addr.IsValid() {
		return Network{}, fmt.Errorf("%w: undefined address", ErrInvalidNetwork)
	}
	if bits < 0 || bits > addr.ip.BitLen() {
		return Network{}, fmt.Errorf("%w: prefix length %d out of range for IPv%d", ErrInvalidNetwork, bits, addr.Version())
	}
	return Network{addr: addr, bits: bits}, nil
}

// HostNetwork returns the single-address network (/32 or /128) of addr.
func HostNetwork(addr Address) Network {
	return Network{addr: addr, bits: addr.ip.BitLen()}
}

// ParseNetwork parses "addr", "addr/len" or, for IPv4, "addr/w.x.y.z".
// A dotted mask must be contiguous. Blanks around the prefix length are
// tolerated.
func ParseNetwork(s string) (Network, error) {
	addrPart, maskPart, hasMask := strings.Cut(strings.TrimSpace(s), "/")

	addr, err := ParseAddress(addrPart)
	if err != nil {
		return Network{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, s)
	}
	if !hasMask {
		return HostNetwork(addr), nil
	}

	maskPart = strings.TrimSpace(maskPart)
	if strings.Contains(maskPart, ".") {
		if !addr.Is4() {
			return Network{}, fmt.Errorf("%w: dotted mask on IPv6 address %q", ErrInvalidNetwork, s)
		}
		bits, err := dottedMaskBits(maskPart)
		if err != nil {
			return Network{}, fmt.Errorf("%w: %q: %v", ErrInvalidNetwork, s, err)
		}
		return NewNetwork(addr, bits)
	}

	bits, err := strconv.Atoi(maskPart)
	if err != nil {
		return Network{}, fmt.Errorf("%w: bad prefix length in %q", ErrInvalidNetwork, s)
	}
	return NewNetwork(addr, bits)
}

// MustParseNetwork is ParseNetwork that panics on error.
func MustParseNetwork(s string) Network {
	n, err := ParseNetwork(s)
	if err != nil {
		panic(err)
	}
	return n
}

func dottedMaskBits(s string) (int, error) {
	mask, err := netip.ParseAddr(s)
	if err != nil || !mask.Is4() {
		return 0, fmt.Errorf("bad mask %q", s)
	}
	b := mask.As4()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])

	bits := 0
	for bits < 32 && v&(1<<(31-bits)) != 0 {
		bits++
	}
	// Any set bit after the first zero makes the mask non-contiguous.
	if bits < 32 && v<<bits != 0 {
		return 0, fmt.Errorf("non-contiguous mask %q", s)
	}
	return bits, nil
}

// Addr returns the network address as configured (host bits kept).
func (n Network) Addr() Address { return n.addr }

// Bits returns the prefix length.
func (n Network) Bits() int { return n.bits }

func (n Network) prefix() netip.Prefix {
	return netip.PrefixFrom(n.addr.ip, n.bits).Masked()
}

// Contains reports whether ip belongs to the network. Addresses of the
// other family are never inside.
func (n Network) Contains(ip Address) bool {
	if !n.addr.IsValid() || !ip.IsValid() {
		return false
	}
	if n.addr.Is4() != ip.Is4() {
		return false
	}
	return n.prefix().Contains(ip.ip)
}

// Compare orders networks: IPv4 before IPv6, then by masked address,
// then by prefix length.
func (n Network) Compare(o Network) int {
	if c := n.prefix().Addr().Compare(o.prefix().Addr()); c != 0 {
		return c
	}
	switch {
	case n.bits < o.bits:
		return -1
	case n.bits > o.bits:
		return 1
	}
	return 0
}

// Less reports whether n sorts before o.
func (n Network) Less(o Network) bool { return n.Compare(o) < 0 }

// String returns the CIDR notation of the network as configured.
func (n Network) String() string {
	if !n.addr.IsValid() {
		return ""
	}
	return n.addr.String() + "/" + strconv.Itoa(n.bits)
}

// NetworkList is a set of networks checked in order.
type NetworkList []Network

// ParseNetworkList parses every entry, failing on the first invalid one.
func ParseNetworkList(values []string) (NetworkList, error) {
	list := make(NetworkList, 0, len(values))
	for _, v := range values {
		n, err := ParseNetwork(v)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, nil
}

// Contains reports whether ip belongs to at least one network of the list.
func (l NetworkList) Contains(ip Address) bool {
	for _, n := range l {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Strings returns the CIDR form of each network.
func (l NetworkList) Strings() []string {
	out := make([]string, len(l))
	for i, n := range l {
		out[i] = n.String()
	}
	return out
}
