package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOAuthConfig() OAuthConfig {
	return OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://linear.app/oauth/authorize",
		TokenURL:     "https://api.linear.app/oauth/token",
		UserInfoURL:  "https://api.linear.app/graphql",
		RedirectURI:  "http://127.0.0.1:8750/oauth/callback",
		Scopes:       []string{"read"},
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, uint16(8750), cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout)
	assert.NotEmpty(t, cfg.Vault.Path)
	assert.Equal(t, PassphraseSourceEnv, cfg.Vault.PassphraseSource)
	assert.Equal(t, "TOKENWARD_VAULT_PASSPHRASE", cfg.Vault.EnvKey)
	assert.Equal(t, 60*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Refresh.Margin)
	assert.False(t, cfg.Refresh.Disabled)
	assert.Equal(t, []string{"read"}, cfg.OAuth.Scopes)
	assert.NotEmpty(t, cfg.OAuth.AuthURL)
	assert.NotEmpty(t, cfg.OAuth.TokenURL)
	assert.NotEmpty(t, cfg.OAuth.UserInfoURL)
}

func TestConfig_ApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 9000},
		Refresh: RefreshConfig{Interval: 30 * time.Second, Margin: 5 * time.Minute},
	}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(9000), cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Margin)
}

func TestConfig_Validate_RequiresOAuthCredentials(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())

	// Defaults alone are incomplete: client id, secret, and redirect URI
	// cannot be defaulted.
	require.Error(t, cfg.Validate())

	cfg.OAuth = validOAuthConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_PassphraseSourceSettings(t *testing.T) {
	cfg := &Config{OAuth: validOAuthConfig()}
	require.NoError(t, cfg.ApplyDefaults())

	cfg.Vault.PassphraseSource = PassphraseSourceFile
	cfg.Vault.File = ""
	require.Error(t, cfg.Validate())

	cfg.Vault.File = "/etc/tokenward/passphrase"
	assert.NoError(t, cfg.Validate())

	cfg.Vault.PassphraseSource = "vault-server"
	assert.Error(t, cfg.Validate())
}

func TestVaultConfig_ResolvePassphrase_Env(t *testing.T) {
	t.Setenv("TEST_TOKENWARD_PASSPHRASE", "from-env")

	v := &VaultConfig{PassphraseSource: PassphraseSourceEnv, EnvKey: "TEST_TOKENWARD_PASSPHRASE"}
	got, err := v.ResolvePassphrase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestVaultConfig_ResolvePassphrase_EnvUnsetDegrades(t *testing.T) {
	v := &VaultConfig{PassphraseSource: PassphraseSourceEnv, EnvKey: "TEST_TOKENWARD_PASSPHRASE_UNSET"}

	// Unset env is not fatal: the vault falls back to an ephemeral key.
	got, err := v.ResolvePassphrase(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVaultConfig_ResolvePassphrase_Generate(t *testing.T) {
	v := &VaultConfig{PassphraseSource: PassphraseSourceGenerate}
	got, err := v.ResolvePassphrase(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVaultConfig_ResolvePassphrase_Unsupported(t *testing.T) {
	v := &VaultConfig{PassphraseSource: "hsm"}
	_, err := v.ResolvePassphrase(context.Background())
	assert.Error(t, err)
}
