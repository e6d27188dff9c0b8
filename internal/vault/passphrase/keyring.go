package passphrase

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringSource reads the passphrase from the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringSource struct {
	service string
	user    string
}

var _ Source = (*KeyringSource)(nil)

// NewKeyringSource creates a KeyringSource for the given service and user
// identifiers.
func NewKeyringSource(service, user string) (*KeyringSource, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}
	return &KeyringSource{service: service, user: user}, nil
}

// Read returns the passphrase from the system keyring.
func (k *KeyringSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	passphrase, err := keyring.Get(k.service, k.user)
	if err != nil {
		return "", err
	}
	if passphrase == "" {
		return "", fmt.Errorf("empty passphrase in keyring for service %s, user %s", k.service, k.user)
	}
	return passphrase, nil
}
