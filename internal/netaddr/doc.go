// Package netaddr provides IPv4/IPv6 address and network value types used by
// the server for peer identification, host allow-lists and peer history.
//
// Networks parse from "10.0.0.0/8", "192.168.1.0/255.255.255.0" or a bare
// address (a single-host network). Membership never crosses families: an
// IPv6 network does not contain IPv4 addresses, and the other way round.
package netaddr
