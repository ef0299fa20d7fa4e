package twofactor

import (
	"errors"
	"fmt"

	"github.com/pquerna/otp"
)

var ErrNoSecret = errors.New("twofactor: provisioning uri has no secret")

// ParseSecret returns the shared secret of an otpauth:// provisioning URI,
// exactly as it appears in the secret query parameter.
func ParseSecret(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("twofactor: parse provisioning uri: %w", err)
	}
	if key.Type() != "totp" {
		return "", fmt.Errorf("twofactor: unsupported otp type %q", key.Type())
	}
	secret := key.Secret()
	if secret == "" {
		return "", ErrNoSecret
	}
	return secret, nil
}
