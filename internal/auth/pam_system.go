//go:build pam

package auth

import (
	"errors"
	"fmt"

	"github.com/msteinert/pam/v2"
)

// SystemPAM returns a verifier backed by the host's libpam.
func SystemPAM() PAMVerifier { return PAMVerifierFunc(authenticatePAM) }

func authenticatePAM(service, user, password string) error {
	tx, err := pam.StartFunc(service, user, func(style pam.Style, msg string) (string, error) {
		switch style {
		case pam.PromptEchoOff:
			return password, nil
		case pam.PromptEchoOn:
			return user, nil
		case pam.ErrorMsg, pam.TextInfo:
			return "", nil
		default:
			return "", errors.New("unrecognized PAM message style")
		}
	})
	if err != nil {
		return fmt.Errorf("pam start %s: %w", service, err)
	}
	defer tx.End()

	if err := tx.Authenticate(0); err != nil {
		return fmt.Errorf("pam authenticate %s: %w", user, err)
	}
	if err := tx.AcctMgmt(0); err != nil {
		return fmt.Errorf("pam account %s: %w", user, err)
	}
	return nil
}
