package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenward/tokenward/internal/app"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_FromEnvironmentOnly(t *testing.T) {
	environ := func() []string {
		return []string{
			"TOKENWARD_OAUTH__CLIENT_ID=env-client",
			"TOKENWARD_OAUTH__CLIENT_SECRET=env-secret",
			"TOKENWARD_OAUTH__REDIRECT_URI=http://127.0.0.1:8750/oauth/callback",
			"UNRELATED_VAR=ignored",
		}
	}

	cfg, err := loadConfig("", nil, environ)
	require.NoError(t, err)

	assert.Equal(t, "env-client", cfg.OAuth.ClientID)
	assert.Equal(t, "env-secret", cfg.OAuth.ClientSecret)

	// Defaults fill everything the environment left unset.
	assert.Equal(t, app.DefaultConfigServerHost, cfg.Server.Host)
	assert.Equal(t, uint16(app.DefaultConfigServerPort), cfg.Server.Port)
	assert.Equal(t, app.DefaultConfigOAuthAuthURL, cfg.OAuth.AuthURL)
	assert.Equal(t, []string{"read"}, cfg.OAuth.Scopes)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
log_format = "json"

[server]
host = "0.0.0.0"
port = 9000

[oauth]
client_id = "file-client"
client_secret = "file-secret"
redirect_uri = "http://127.0.0.1:9000/oauth/callback"
`)

	environ := func() []string {
		return []string{"TOKENWARD_OAUTH__CLIENT_ID=env-client"}
	}

	cfg, err := loadConfig(path, nil, environ)
	require.NoError(t, err)

	assert.Equal(t, app.LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(9000), cfg.Server.Port)
	assert.Equal(t, "env-client", cfg.OAuth.ClientID, "environment wins over file")
	assert.Equal(t, "file-secret", cfg.OAuth.ClientSecret)
}

func TestLoadConfig_MissingFileFails(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"), nil, func() []string { return nil })
	assert.Error(t, err)
}

func TestLoadConfig_InvalidConfigFails(t *testing.T) {
	// No OAuth client credentials anywhere.
	_, err := loadConfig("", nil, func() []string { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
