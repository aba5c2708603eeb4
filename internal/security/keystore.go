package security

import (
	"errors"

	"github.com/aq2208/payment-relay/configs"
)

// KeyMaterial is the gateway key pair. The secret signs outbound API calls
// and is the HMAC key for payment signatures.
type KeyMaterial struct {
	KeyID  string
	Secret configs.Secret
}

var ErrNoKeyMaterial = errors.New("gateway key id and secret required")

func LoadKeyMaterial(c configs.Config) (KeyMaterial, error) {
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return KeyMaterial{}, ErrNoKeyMaterial
	}
	return KeyMaterial{
		KeyID:  c.Gateway.KeyID,
		Secret: c.Gateway.KeySecret,
	}, nil
}
