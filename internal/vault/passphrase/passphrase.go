// Package passphrase resolves the vault's encryption passphrase from one of
// several sources with different deployment tradeoffs:
//   - Env: environment variable (requires external secret management)
//   - File: local file with secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// A passphrase is read once at vault construction; none of the sources are
// writable from this process.
package passphrase

import "context"

// Source reads the vault passphrase from its backing location.
type Source interface {
	// Read returns the passphrase. Returns an error if it is missing or empty.
	Read(ctx context.Context) (string, error)
}
