package config

import "time"

// CurrentVersion is the supported configuration file version.
const CurrentVersion = 1

// File is the whole configuration file. Keys are shared by the YAML file
// and the NAVAJO_ environment overrides.
type File struct {
	Version    int    `koanf:"version" yaml:"version"`
	ServerName string `koanf:"server_name" yaml:"server_name,omitempty"`
	Realm      string `koanf:"realm" yaml:"realm,omitempty"`

	Log          Log          `koanf:"log" yaml:"log"`
	Network      Network      `koanf:"network" yaml:"network"`
	TLS          TLS          `koanf:"tls" yaml:"tls"`
	Auth         Auth         `koanf:"auth" yaml:"auth"`
	Pool         Pool         `koanf:"pool" yaml:"pool"`
	Timeouts     Timeouts     `koanf:"timeouts" yaml:"timeouts"`
	Session      Session      `koanf:"session" yaml:"session"`
	Limits       Limits       `koanf:"limits" yaml:"limits"`
	RateLimit    RateLimit    `koanf:"rate_limit" yaml:"rate_limit"`
	Metrics      Metrics      `koanf:"metrics" yaml:"metrics"`
	Discovery    Discovery    `koanf:"discovery" yaml:"discovery"`
	Repositories []Repository `koanf:"repositories" yaml:"repositories,omitempty"`
	WebSockets   []WebSocket  `koanf:"websockets" yaml:"websockets,omitempty"`
}

// Log selects the log level ("" disables logging) and format.
type Log struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // console or json
}

// Network describes where the server listens and who may connect.
type Network struct {
	Host     string   `koanf:"host" yaml:"host,omitempty"`
	Port     int      `koanf:"port" yaml:"port"`
	Device   string   `koanf:"device" yaml:"device,omitempty"`
	IPv4Only bool     `koanf:"ipv4_only" yaml:"ipv4_only"`
	IPv6Only bool     `koanf:"ipv6_only" yaml:"ipv6_only"`
	Allow    []string `koanf:"allow" yaml:"allow,omitempty"` // CIDR or address/dotted-mask
}

// TLS configures HTTPS and client certificates.
type TLS struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	CertFile string `koanf:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile  string `koanf:"key_file" yaml:"key_file,omitempty"`
	// KeyPassword is better passed through NAVAJO_TLS__KEY_PASSWORD or the
	// terminal prompt than stored here.
	KeyPassword string `koanf:"key_password" yaml:"key_password,omitempty"`
	Mutual      bool   `koanf:"mutual" yaml:"mutual"`
	CAFile      string `koanf:"ca_file" yaml:"ca_file,omitempty"`
	Watch       bool   `koanf:"watch" yaml:"watch"`
}

// Auth enables the authentication mechanisms.
type Auth struct {
	// Logins are "user:password" or "user:<argon2id hash>" entries.
	Logins []string `koanf:"logins" yaml:"logins,omitempty"`
	// DN enables client certificate authentication. PeerDNs restricts it.
	DN      bool     `koanf:"dn" yaml:"dn"`
	PeerDNs []string `koanf:"peer_dns" yaml:"peer_dns,omitempty"`
	PAM     PAM      `koanf:"pam" yaml:"pam"`
}

// PAM configures system account authentication.
type PAM struct {
	Enabled bool     `koanf:"enabled" yaml:"enabled"`
	Service string   `koanf:"service" yaml:"service,omitempty"`
	Users   []string `koanf:"users" yaml:"users,omitempty"`
}

type Pool struct {
	Size int `koanf:"size" yaml:"size"`
}

type Timeouts struct {
	Receive   time.Duration `koanf:"receive" yaml:"receive"`
	Write     time.Duration `koanf:"write" yaml:"write"`
	Handshake time.Duration `koanf:"handshake" yaml:"handshake"`
}

type Session struct {
	Lifetime time.Duration `koanf:"lifetime" yaml:"lifetime"`
}

type Limits struct {
	MaxHeader int64 `koanf:"max_header" yaml:"max_header"`
	MaxBody   int64 `koanf:"max_body" yaml:"max_body"`
}

// RateLimit bounds new connections per peer address. 0 disables it.
type RateLimit struct {
	PerSecond float64 `koanf:"per_second" yaml:"per_second"`
	Burst     int     `koanf:"burst" yaml:"burst"`
}

// Metrics serves Prometheus metrics at Path when enabled.
type Metrics struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path,omitempty"`
}

// Discovery advertises the server over mDNS.
type Discovery struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	Instance string `koanf:"instance" yaml:"instance,omitempty"`
}

// Repository serves a local directory under an URL alias.
type Repository struct {
	Alias string `koanf:"alias" yaml:"alias"`
	Dir   string `koanf:"dir" yaml:"dir"`
}

// WebSocket declares an endpoint served by a built-in handler.
type WebSocket struct {
	Path    string `koanf:"path" yaml:"path"`
	Handler string `koanf:"handler" yaml:"handler"` // only "echo" is built in
	Deflate bool   `koanf:"deflate" yaml:"deflate"`
}

// Default returns the configuration used when no file exists.
func Default() *File {
	return &File{
		Version: CurrentVersion,
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Network: Network{
			Port: 8080,
		},
		Pool: Pool{
			Size: 64,
		},
		Timeouts: Timeouts{
			Receive:   30 * time.Second,
			Write:     30 * time.Second,
			Handshake: 10 * time.Second,
		},
		Session: Session{
			Lifetime: 20 * time.Minute,
		},
		Limits: Limits{
			MaxHeader: 64 << 10,
			MaxBody:   10 << 20,
		},
		Metrics: Metrics{
			Path: "/metrics",
		},
	}
}
