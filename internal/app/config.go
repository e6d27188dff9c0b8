package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tokenward/tokenward/internal/vault/passphrase"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// PassphraseSourceType represents the supported vault passphrase sources.
type PassphraseSourceType string

const (
	PassphraseSourceEnv     PassphraseSourceType = "env"
	PassphraseSourceFile    PassphraseSourceType = "file"
	PassphraseSourceKeyring PassphraseSourceType = "keyring"

	// PassphraseSourceGenerate makes the vault derive its key from a random
	// ephemeral value. Stored data does not survive a restart.
	PassphraseSourceGenerate PassphraseSourceType = "generate"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 8750
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigPassphraseSource = PassphraseSourceEnv
	DefaultConfigPassphraseEnvKey = "TOKENWARD_VAULT_PASSPHRASE"
	DefaultConfigRefreshInterval  = 60 * time.Second
	DefaultConfigRefreshMargin    = 10 * time.Minute
	DefaultConfigOAuthAuthURL     = "https://linear.app/oauth/authorize"
	DefaultConfigOAuthTokenURL    = "https://api.linear.app/oauth/token"
	DefaultConfigOAuthUserInfoURL = "https://api.linear.app/graphql"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// VaultConfig describes where the credential store lives and where its
// encryption passphrase comes from.
type VaultConfig struct {
	// Path to the encrypted credential file.
	Path string `json:"path"`

	// PassphraseSource selects how the encryption passphrase is obtained.
	PassphraseSource PassphraseSourceType `json:"passphrase_source" validate:"required,oneof=env file keyring generate"`

	// Source-specific settings (mutually exclusive based on PassphraseSource)
	EnvKey      string `json:"env_key,omitempty"`      // For env source: environment variable name
	File        string `json:"file,omitempty"`         // For file source: path to passphrase file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring source: user identifier
}

// ResolvePassphrase reads the vault passphrase from the configured source.
//
// An empty result is not an error: the vault then generates a random
// ephemeral key and logs the operational hazard. Only the env source
// degrades this way (the variable may legitimately be unset); file and
// keyring sources were configured deliberately, so their failures are hard
// errors.
func (v *VaultConfig) ResolvePassphrase(ctx context.Context) (string, error) {
	switch v.PassphraseSource {
	case PassphraseSourceGenerate:
		return "", nil
	case PassphraseSourceEnv:
		src, err := passphrase.NewEnvSource(v.EnvKey)
		if err != nil {
			slog.Warn("vault passphrase not configured", "env_key", v.EnvKey)
			return "", nil
		}
		return src.Read(ctx)
	case PassphraseSourceFile:
		src, err := passphrase.NewFileSource(v.File)
		if err != nil {
			return "", err
		}
		return src.Read(ctx)
	case PassphraseSourceKeyring:
		src, err := passphrase.NewKeyringSource("tokenward-vault", v.KeyringUser)
		if err != nil {
			return "", err
		}
		return src.Read(ctx)
	default:
		return "", fmt.Errorf("unsupported passphrase source: %s", v.PassphraseSource)
	}
}

// OAuthConfig is the provider configuration for the authorization-code flow.
type OAuthConfig struct {
	ClientID     string   `json:"client_id" validate:"required"`
	ClientSecret string   `json:"client_secret" validate:"required"`
	AuthURL      string   `json:"auth_url" validate:"required,url"`
	TokenURL     string   `json:"token_url" validate:"required,url"`
	UserInfoURL  string   `json:"user_info_url" validate:"required,url"`
	RedirectURI  string   `json:"redirect_uri" validate:"required,url"`
	Scopes       []string `json:"scopes" validate:"min=1"`
}

// RefreshConfig controls the background token refresh scheduler.
type RefreshConfig struct {
	// Disabled turns the scheduler off entirely; tokens then expire unless
	// refreshed by re-authorization.
	Disabled bool          `json:"disabled"`
	Interval time.Duration `json:"interval"`
	Margin   time.Duration `json:"margin"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Vault     VaultConfig    `json:"vault"`
	OAuth     OAuthConfig    `json:"oauth"`
	Refresh   RefreshConfig  `json:"refresh"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Vault.Path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("vault.path required (auto-detect failed: %w)", err)
		}
		c.Vault.Path = filepath.Join(configDir, "tokenward", "credentials")
	}
	if c.Vault.PassphraseSource == "" {
		c.Vault.PassphraseSource = DefaultConfigPassphraseSource
	}

	// Dynamic defaults based on passphrase source
	switch c.Vault.PassphraseSource {
	case PassphraseSourceEnv:
		if c.Vault.EnvKey == "" {
			c.Vault.EnvKey = DefaultConfigPassphraseEnvKey
		}
	case PassphraseSourceKeyring:
		if c.Vault.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("vault.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Vault.KeyringUser = currentUser.Username
		}
	case PassphraseSourceFile, PassphraseSourceGenerate:
		// file must be explicitly configured; generate needs nothing
	}

	if c.OAuth.AuthURL == "" {
		c.OAuth.AuthURL = DefaultConfigOAuthAuthURL
	}
	if c.OAuth.TokenURL == "" {
		c.OAuth.TokenURL = DefaultConfigOAuthTokenURL
	}
	if c.OAuth.UserInfoURL == "" {
		c.OAuth.UserInfoURL = DefaultConfigOAuthUserInfoURL
	}
	if len(c.OAuth.Scopes) == 0 {
		c.OAuth.Scopes = []string{"read"}
	}

	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = DefaultConfigRefreshInterval
	}
	if c.Refresh.Margin == 0 {
		c.Refresh.Margin = DefaultConfigRefreshMargin
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Vault.PassphraseSource {
	case PassphraseSourceFile:
		if c.Vault.File == "" {
			return errors.New("file path required for file passphrase source")
		}
	case PassphraseSourceEnv:
		if c.Vault.EnvKey == "" {
			return errors.New("env_key required for env passphrase source")
		}
	case PassphraseSourceKeyring:
		if c.Vault.KeyringUser == "" {
			return errors.New("keyring_user required for keyring passphrase source")
		}
	}

	return nil
}
