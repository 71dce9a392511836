package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance is a server found on the local network.
type Instance struct {
	// Name is the mDNS instance name (e.g., "navajo on build-host")
	Name string

	// Hostname is the advertised host (e.g., "build-host.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the listening port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "version", "tls"
	Metadata map[string]string

	// DiscoveredAt is when the instance answered
	DiscoveredAt time.Time
}

// TLS reports whether the instance advertised an HTTPS endpoint.
func (i *Instance) TLS() bool {
	return i.Metadata["tls"] == "true"
}

// String returns a human-readable description of the instance.
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s) at %s", i.Name, i.Hostname, net.JoinHostPort(i.IP, strconv.Itoa(i.Port)))
}

// BaseURL returns the URL clients should use.
func (i *Instance) BaseURL() string {
	scheme := "http"
	if i.TLS() {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
