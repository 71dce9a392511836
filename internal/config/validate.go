package config

import (
	"fmt"
	"strings"

	"github.com/mingodad/libnavajo/internal/auth"
	"github.com/mingodad/libnavajo/internal/netaddr"
	"github.com/mingodad/libnavajo/internal/server"
	"github.com/mingodad/libnavajo/internal/tlsconf"
)

// Validate checks the values the server cannot default.
func (f *File) Validate() error {
	if f.Version != CurrentVersion {
		return &server.ConfigError{Field: "version", Reason: fmt.Sprintf("unsupported config version %d (expected %d)", f.Version, CurrentVersion)}
	}
	switch f.Log.Format {
	case "", "console", "json":
	default:
		return &server.ConfigError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q", f.Log.Format)}
	}
	if f.Network.IPv4Only && f.Network.IPv6Only {
		return &server.ConfigError{Field: "network", Reason: "ipv4_only and ipv6_only are exclusive"}
	}
	if f.Network.Port < 0 || f.Network.Port > 65535 {
		return &server.ConfigError{Field: "network.port", Reason: fmt.Sprintf("port %d out of range", f.Network.Port)}
	}
	if f.TLS.Enabled && f.TLS.CertFile == "" {
		return &server.ConfigError{Field: "tls.cert_file", Reason: "required when TLS is enabled"}
	}
	if f.TLS.Mutual && f.TLS.CAFile == "" {
		return &server.ConfigError{Field: "tls.ca_file", Reason: "required for mutual TLS"}
	}
	if (f.Auth.DN || len(f.Auth.PeerDNs) > 0) && !f.TLS.Enabled {
		return &server.ConfigError{Field: "auth.peer_dns", Reason: "certificate authentication needs TLS"}
	}
	if (f.Auth.DN || len(f.Auth.PeerDNs) > 0) && f.TLS.CAFile == "" {
		return &server.ConfigError{Field: "tls.ca_file", Reason: "required for certificate authentication"}
	}
	if _, err := netaddr.ParseNetworkList(f.Network.Allow); err != nil {
		return &server.ConfigError{Field: "network.allow", Reason: "bad network", Err: err}
	}
	for i, r := range f.Repositories {
		if r.Dir == "" {
			return &server.ConfigError{Field: fmt.Sprintf("repositories[%d].dir", i), Reason: "empty"}
		}
	}
	for i, ws := range f.WebSockets {
		if ws.Path == "" {
			return &server.ConfigError{Field: fmt.Sprintf("websockets[%d].path", i), Reason: "empty"}
		}
		if ws.Handler != "echo" {
			return &server.ConfigError{Field: fmt.Sprintf("websockets[%d].handler", i), Reason: fmt.Sprintf("unknown handler %q", ws.Handler)}
		}
	}
	return nil
}

// ServerConfig converts the file into the server configuration.
// passwordFunc is asked for the key password when the key is encrypted and
// no password is configured; it may be nil.
func (f *File) ServerConfig(passwordFunc func() ([]byte, error)) server.Config {
	cfg := server.Config{
		Host:              f.Network.Host,
		Port:              f.Network.Port,
		Device:            f.Network.Device,
		IPv4Only:          f.Network.IPv4Only,
		IPv6Only:          f.Network.IPv6Only,
		AllowedNetworks:   f.Network.Allow,
		PoolSize:          f.Pool.Size,
		ServerName:        f.ServerName,
		Realm:             f.Realm,
		WatchCertificates: f.TLS.Watch,
		Auth: auth.Config{
			Logins:     f.Auth.Logins,
			PAM:        f.Auth.PAM.Enabled,
			PAMService: f.Auth.PAM.Service,
			PAMUsers:   f.Auth.PAM.Users,
			DN:         f.Auth.DN || len(f.Auth.PeerDNs) > 0,
			PeerDNs:    f.Auth.PeerDNs,
		},
		ReceiveTimeout:    f.Timeouts.Receive,
		WriteTimeout:      f.Timeouts.Write,
		HandshakeTimeout:  f.Timeouts.Handshake,
		SessionLifetime:   f.Session.Lifetime,
		MaxHeaderBytes:    f.Limits.MaxHeader,
		MaxBodyBytes:      f.Limits.MaxBody,
		RatePerSecond:     f.RateLimit.PerSecond,
		RateBurst:         f.RateLimit.Burst,
		Discovery:         f.Discovery.Enabled,
		DiscoveryInstance: f.Discovery.Instance,
	}
	if f.Metrics.Enabled {
		cfg.MetricsPath = f.Metrics.Path
	}
	if f.TLS.Enabled {
		cfg.TLS = &tlsconf.Config{
			CertFile:          f.TLS.CertFile,
			KeyFile:           f.TLS.KeyFile,
			KeyPassword:       f.TLS.KeyPassword,
			PasswordFunc:      passwordFunc,
			CAFile:            f.TLS.CAFile,
			RequireClientCert: f.TLS.Mutual,
		}
	}
	return cfg
}

// Scheme returns "https" or "http".
func (f *File) Scheme() string {
	if f.TLS.Enabled {
		return "https"
	}
	return "http"
}

// WebSocketPaths lists the configured endpoint paths.
func (f *File) WebSocketPaths() []string {
	paths := make([]string, 0, len(f.WebSockets))
	for _, ws := range f.WebSockets {
		paths = append(paths, "/"+strings.TrimLeft(ws.Path, "/"))
	}
	return paths
}
