package netaddr

import (
	"errors"
	"net"
	"sort"
	"testing"
)

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"cidr", "10.0.0.0/8", "10.0.0.0/8", false},
		{"dotted mask", "192.168.1.0/255.255.255.0", "192.168.1.0/24", false},
		{"bare ipv4", "127.0.0.1", "127.0.0.1/32", false},
		{"bare ipv6", "::1", "::1/128", false},
		{"ipv6 cidr", "fe80::/10", "fe80::/10", false},
		{"blanks around prefix", "10.0.0.0/ 8 ", "10.0.0.0/8", false},
		{"zero prefix", "0.0.0.0/0", "0.0.0.0/0", false},
		{"non-contiguous mask", "10.0.0.0/255.0.255.0", "", true},
		{"prefix too long v4", "10.0.0.0/33", "", true},
		{"prefix too long v6", "::/129", "", true},
		{"negative prefix", "10.0.0.0/-1", "", true},
		{"dotted mask on v6", "::1/255.0.0.0", "", true},
		{"garbage", "not-an-ip", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseNetwork(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseNetwork(%q) = %v, want error", tt.input, n)
				}
				if !errors.Is(err, ErrInvalidNetwork) {
					t.Errorf("error = %v, want ErrInvalidNetwork", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNetwork(%q) error = %v", tt.input, err)
			}
			if got := n.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkContains(t *testing.T) {
	tests := []struct {
		network string
		addr    string
		want    bool
	}{
		{"10.0.0.0/8", "10.1.2.3", true},
		{"10.0.0.0/8", "11.0.0.1", false},
		{"10.0.0.0/8", "::ffff:10.1.2.3", true},
		{"10.0.0.0/8", "::1", false},
		{"::/0", "10.1.2.3", false},
		{"::/0", "2001:db8::1", true},
		{"0.0.0.0/0", "2001:db8::1", false},
		{"192.168.1.0/255.255.255.0", "192.168.1.200", true},
		{"192.168.1.0/255.255.255.0", "192.168.2.1", false},
		{"127.0.0.1", "127.0.0.1", true},
		{"127.0.0.1", "127.0.0.2", false},
		{"10.1.2.3/8", "10.200.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.network+"_"+tt.addr, func(t *testing.T) {
			n := MustParseNetwork(tt.network)
			a := MustParseAddress(tt.addr)
			if got := n.Contains(a); got != tt.want {
				t.Errorf("%s.Contains(%s) = %v, want %v", tt.network, tt.addr, got, tt.want)
			}
		})
	}
}

func TestNetworkContainsUndefined(t *testing.T) {
	n := MustParseNetwork("0.0.0.0/0")
	if n.Contains(Address{}) {
		t.Error("network should not contain the undefined address")
	}
	var zero Network
	if zero.Contains(MustParseAddress("1.2.3.4")) {
		t.Error("zero network should contain nothing")
	}
}

func TestNetworkOrdering(t *testing.T) {
	list := NetworkList{
		MustParseNetwork("2001:db8::/32"),
		MustParseNetwork("10.0.0.0/16"),
		MustParseNetwork("10.0.0.0/8"),
		MustParseNetwork("192.168.0.0/16"),
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })

	want := []string{"10.0.0.0/8", "10.0.0.0/16", "192.168.0.0/16", "2001:db8::/32"}
	got := list.Strings()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sorted[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNetworkListContains(t *testing.T) {
	list, err := ParseNetworkList([]string{"127.0.0.1", "10.0.0.0/8", "::1"})
	if err != nil {
		t.Fatalf("ParseNetworkList() error = %v", err)
	}

	for addr, want := range map[string]bool{
		"127.0.0.1":   true,
		"10.9.9.9":    true,
		"::1":         true,
		"192.168.0.1": false,
		"::2":         false,
	} {
		if got := list.Contains(MustParseAddress(addr)); got != want {
			t.Errorf("Contains(%s) = %v, want %v", addr, got, want)
		}
	}

	if _, err := ParseNetworkList([]string{"10.0.0.0/8", "bogus"}); err == nil {
		t.Error("ParseNetworkList() with invalid entry should fail")
	}
}

func TestAddressOrdering(t *testing.T) {
	v4 := MustParseAddress("255.255.255.255")
	v6 := MustParseAddress("::")
	if !v4.Less(v6) {
		t.Error("IPv4 addresses should sort before IPv6")
	}
	if !(Address{}).Less(v4) {
		t.Error("undefined address should sort first")
	}
}

func TestFromNetAddr(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"tcp v4", &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 80}, "192.0.2.1"},
		{"tcp mapped", &net.TCPAddr{IP: net.ParseIP("::ffff:192.0.2.1"), Port: 80}, "192.0.2.1"},
		{"tcp v6", &net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 80}, "2001:db8::1"},
		{"unix", &net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromNetAddr(tt.addr).String(); got != tt.want {
				t.Errorf("FromNetAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddressAsMapKey(t *testing.T) {
	seen := map[Address]int{}
	seen[MustParseAddress("10.0.0.1")]++
	seen[MustParseAddress("::ffff:10.0.0.1")]++
	if len(seen) != 1 {
		t.Errorf("mapped and plain IPv4 should be one key, got %d", len(seen))
	}
}
