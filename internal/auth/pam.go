package auth

import "errors"

// DefaultPAMService is the PAM service used when none is configured.
const DefaultPAMService = "login"

// ErrPAMUnsupported is returned by the PAM verifier of builds without the
// pam tag.
var ErrPAMUnsupported = errors.New("auth: PAM support not compiled in (build with -tags pam)")

// PAMVerifier checks a user name and password against a PAM service.
type PAMVerifier interface {
	Authenticate(service, user, password string) error
}

// PAMVerifierFunc adapts a function to PAMVerifier.
type PAMVerifierFunc func(service, user, password string) error

// Authenticate calls f.
func (f PAMVerifierFunc) Authenticate(service, user, password string) error {
	return f(service, user, password)
}
