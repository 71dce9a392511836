package auth

import (
	"encoding/base64"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

// Mechanism names the way a request was authenticated.
type Mechanism string

const (
	MechanismNone  Mechanism = "none"
	MechanismBasic Mechanism = "basic"
	MechanismPAM   Mechanism = "pam"
	MechanismDN    Mechanism = "dn"
)

// Config selects the enabled mechanisms.
type Config struct {
	// Logins holds "user:password" entries. The password may be an
	// Argon2id hash from HashPassword.
	Logins []string

	PAM        bool
	PAMService string
	// PAMUsers restricts PAM to these users when non-empty.
	PAMUsers []string

	// DN enables client-certificate authentication.
	DN bool
	// PeerDNs restricts accepted subjects when non-empty.
	PeerDNs []string
}

// Peer is the TLS identity of the connection.
type Peer struct {
	DN       string
	Verified bool
}

// Result is the outcome of Check.
type Result struct {
	Granted   bool
	Username  string
	Mechanism Mechanism
}

// Authenticator applies the configured mechanisms to requests. It is safe
// for concurrent use once built.
type Authenticator struct {
	logins     map[string]string
	pamEnabled bool
	pamService string
	pamUsers   map[string]struct{}
	pam        PAMVerifier
	dnEnabled  bool
	peerDNs    map[string]struct{}

	users *History[string]
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithPAMVerifier replaces the system PAM verifier.
func WithPAMVerifier(v PAMVerifier) Option {
	return func(a *Authenticator) { a.pam = v }
}

// New builds an authenticator. Malformed login entries (no ':') and
// entries whose Argon2id hash cannot be used are skipped with a warning.
func New(cfg Config, opts ...Option) *Authenticator {
	a := &Authenticator{
		logins:     make(map[string]string),
		pamEnabled: cfg.PAM,
		pamService: cfg.PAMService,
		pamUsers:   toSet(cfg.PAMUsers),
		pam:        SystemPAM(),
		dnEnabled:  cfg.DN,
		peerDNs:    toSet(cfg.PeerDNs),
		users:      NewHistory[string](),
	}
	if a.pamService == "" {
		a.pamService = DefaultPAMService
	}
	for _, entry := range cfg.Logins {
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			logging.Append(logging.SeverityWarning, "WebServer: ignoring malformed login entry", user)
			continue
		}
		if IsHashed(pass) {
			if err := ValidateHash(pass); err != nil {
				logging.Append(logging.SeverityWarning, "WebServer: ignoring login with unusable password hash", user+": "+err.Error())
				continue
			}
		}
		a.logins[user] = pass
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// Enabled reports whether any mechanism is configured.
func (a *Authenticator) Enabled() bool {
	return a.basicEnabled() || a.dnEnabled
}

func (a *Authenticator) basicEnabled() bool {
	return len(a.logins) > 0 || a.pamEnabled
}

// UserHistory returns the users that authenticated with Basic or PAM.
func (a *Authenticator) UserHistory() *History[string] { return a.users }

// Check authenticates a request from its Authorization header and the TLS
// peer identity. With no mechanism configured every request is granted.
func (a *Authenticator) Check(authorization string, peer Peer) Result {
	if !a.Enabled() {
		return Result{Granted: true, Mechanism: MechanismNone}
	}

	if a.basicEnabled() && authorization != "" {
		if user, mech, ok := a.checkBasic(authorization); ok {
			a.users.Touch(user)
			return Result{Granted: true, Username: user, Mechanism: mech}
		}
	}

	if a.dnEnabled && a.checkDN(peer) {
		return Result{Granted: true, Mechanism: MechanismDN}
	}
	return Result{}
}

// checkDN accepts a verified peer whose subject is listed, or any verified
// peer when the list is empty.
func (a *Authenticator) checkDN(peer Peer) bool {
	if !peer.Verified || peer.DN == "" {
		return false
	}
	if len(a.peerDNs) == 0 {
		return true
	}
	_, ok := a.peerDNs[peer.DN]
	return ok
}

func (a *Authenticator) checkBasic(authorization string) (string, Mechanism, bool) {
	user, pass, ok := ParseBasic(authorization)
	if !ok {
		return "", "", false
	}

	if stored, found := a.logins[user]; found && checkPassword(pass, stored) {
		return user, MechanismBasic, true
	}

	if !a.pamEnabled {
		return "", "", false
	}
	if len(a.pamUsers) > 0 {
		if _, allowed := a.pamUsers[user]; !allowed {
			return "", "", false
		}
	}
	if err := a.pam.Authenticate(a.pamService, user, pass); err != nil {
		if errors.Is(err, ErrPAMUnsupported) {
			logging.AppendUniq(logging.SeverityWarning, "WebServer: PAM authentication requested but unsupported", "")
		} else {
			logging.Debug("PAM authentication failed", zap.String("user", user), zap.Error(err))
		}
		return "", "", false
	}
	return user, MechanismPAM, true
}

// ParseBasic decodes an "Authorization: Basic" value into user and
// password. The password may contain ':'.
func ParseBasic(authorization string) (user, password string, ok bool) {
	const prefix = "basic "
	if len(authorization) < len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(authorization[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	user, password, ok = strings.Cut(string(raw), ":")
	if !ok || user == "" {
		return "", "", false
	}
	return user, password, true
}
