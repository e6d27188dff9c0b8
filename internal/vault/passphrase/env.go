package passphrase

import (
	"context"
	"fmt"
	"os"
)

// EnvSource reads the passphrase from an environment variable.
type EnvSource struct {
	envKey string
}

var _ Source = (*EnvSource)(nil)

// NewEnvSource creates an EnvSource for the given environment variable.
// Returns an error if the variable name is empty or not set.
func NewEnvSource(envKey string) (*EnvSource, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}
	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}
	return &EnvSource{envKey: envKey}, nil
}

// Read returns the passphrase from the environment variable.
func (e *EnvSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	passphrase := os.Getenv(e.envKey)
	if passphrase == "" {
		return "", fmt.Errorf("environment variable %s is empty", e.envKey)
	}
	return passphrase, nil
}
