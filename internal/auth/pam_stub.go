//go:build !pam

package auth

// SystemPAM returns a verifier that always fails with ErrPAMUnsupported.
func SystemPAM() PAMVerifier {
	return PAMVerifierFunc(func(string, string, string) error { return ErrPAMUnsupported })
}
