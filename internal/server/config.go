package server

import (
	"fmt"
	"time"

	"github.com/mingodad/libnavajo/internal/auth"
	"github.com/mingodad/libnavajo/internal/netaddr"
	"github.com/mingodad/libnavajo/internal/pool"
	"github.com/mingodad/libnavajo/internal/session"
	"github.com/mingodad/libnavajo/internal/tlsconf"
	"github.com/mingodad/libnavajo/internal/web"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultPort             = 8080
	DefaultReceiveTimeout   = 30 * time.Second
	DefaultWriteTimeout     = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultSessionLifetime  = session.DefaultTTL
	DefaultSweepInterval    = time.Minute
)

// Config holds the server configuration
type Config struct {
	// Host restricts listening to one address. Empty listens on every
	// interface, one listener per address family.
	Host string
	// Port 0 picks a free port (see Addrs).
	Port     int
	Device   string // bind device (SO_BINDTODEVICE), Linux only
	IPv4Only bool
	IPv6Only bool
	// AllowedNetworks are CIDR or dotted-mask networks. Empty allows every peer.
	AllowedNetworks []string

	PoolSize   int
	ServerName string
	Realm      string

	// TLS is nil for plain HTTP.
	TLS *tlsconf.Config
	// WatchCertificates reloads the certificate when its files change.
	WatchCertificates bool

	Auth auth.Config

	ReceiveTimeout   time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	SessionLifetime  time.Duration
	SweepInterval    time.Duration

	MaxHeaderBytes int64
	MaxBodyBytes   int64

	// RatePerSecond limits accepted connections per peer IP. 0 disables.
	RatePerSecond float64
	RateBurst     int

	// MetricsPath serves Prometheus metrics when set and metrics are enabled.
	MetricsPath string

	Discovery         bool
	DiscoveryInstance string
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// withDefaults validates c and returns a copy with defaults filled in,
// along with the parsed allow-list.
func (c Config) withDefaults() (Config, netaddr.NetworkList, error) {
	if c.IPv4Only && c.IPv6Only {
		return c, nil, &ConfigError{Field: "network", Reason: "ipv4_only and ipv6_only are exclusive"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return c, nil, &ConfigError{Field: "port", Reason: fmt.Sprintf("%d out of range", c.Port)}
	}
	if c.PoolSize < 0 {
		return c, nil, &ConfigError{Field: "pool.size", Reason: "must not be negative"}
	}
	if c.RatePerSecond < 0 || c.RateBurst < 0 {
		return c, nil, &ConfigError{Field: "rate_limit", Reason: "must not be negative"}
	}

	allowed, err := netaddr.ParseNetworkList(c.AllowedNetworks)
	if err != nil {
		return c, nil, &ConfigError{Field: "network.allow", Reason: "bad network", Err: err}
	}

	if c.PoolSize == 0 {
		c.PoolSize = pool.DefaultSize
	}
	if c.ServerName == "" {
		c.ServerName = web.DefaultServerName
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.SessionLifetime == 0 {
		c.SessionLifetime = DefaultSessionLifetime
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = web.DefaultMaxHeaderBytes
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = web.DefaultMaxBodyBytes
	}
	if c.RatePerSecond > 0 && c.RateBurst == 0 {
		c.RateBurst = int(c.RatePerSecond)
		if c.RateBurst < 1 {
			c.RateBurst = 1
		}
	}
	return c, allowed, nil
}
