package vault

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	noExpiry := &Credential{Metadata: CredentialMetadata{ID: "a"}}
	assert.False(t, noExpiry.IsExpired(now))

	future := now.Add(time.Hour)
	assert.False(t, (&Credential{Metadata: CredentialMetadata{ID: "b", ExpiresAt: &future}}).IsExpired(now))

	past := now.Add(-time.Second)
	assert.True(t, (&Credential{Metadata: CredentialMetadata{ID: "c", ExpiresAt: &past}}).IsExpired(now))
}

func TestCredential_Validate(t *testing.T) {
	valid := &Credential{
		Metadata: CredentialMetadata{ID: "ok", Type: CredentialTypeAPIKey},
		Data:     &APIKeyData{Key: NewSecret("k")},
	}
	require.NoError(t, valid.Validate())

	noID := &Credential{
		Metadata: CredentialMetadata{Type: CredentialTypeAPIKey},
		Data:     &APIKeyData{Key: NewSecret("k")},
	}
	assert.Error(t, noID.Validate())

	noData := &Credential{Metadata: CredentialMetadata{ID: "x", Type: CredentialTypeAPIKey}}
	assert.Error(t, noData.Validate())

	mismatch := &Credential{
		Metadata: CredentialMetadata{ID: "x", Type: CredentialTypeOAuthToken},
		Data:     &APIKeyData{Key: NewSecret("k")},
	}
	assert.Error(t, mismatch.Validate())
}

func TestCredential_JSONSelectsPayloadVariant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	original := Credential{
		Metadata: CredentialMetadata{ID: "up", Name: "login", Type: CredentialTypeUsernamePassword, CreatedAt: now, UpdatedAt: now},
		Data:     &UsernamePasswordData{Username: "alice", Password: NewSecret("hunter2")},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Credential
	require.NoError(t, json.Unmarshal(raw, &decoded))

	data, ok := decoded.Data.(*UsernamePasswordData)
	require.True(t, ok)
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, "hunter2", data.Password.Value())
}

func TestCredential_UnmarshalRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"metadata":{"id":"x","type":"ssh_key"},"data":{}}`)

	var decoded Credential
	err := json.Unmarshal(raw, &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential type")
}
