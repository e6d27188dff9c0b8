package vault

import (
	"encoding/json"
	"fmt"
	"time"
)

// CredentialType tags the payload variant carried by a credential.
type CredentialType string

const (
	CredentialTypeAPIKey           CredentialType = "api_key"
	CredentialTypeOAuthToken       CredentialType = "oauth_token"
	CredentialTypeUsernamePassword CredentialType = "username_password"
)

// CredentialMetadata describes a stored credential without its secret payload.
type CredentialMetadata struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        CredentialType    `json:"type"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// CredentialData is the tagged union of secret payloads. The concrete type
// must agree with the credential's metadata type.
type CredentialData interface {
	CredentialType() CredentialType
}

// APIKeyData holds a plain API key.
type APIKeyData struct {
	Key Secret `json:"key"`
}

func (APIKeyData) CredentialType() CredentialType { return CredentialTypeAPIKey }

// OAuthTokenData holds an OAuth access token and optional refresh token.
type OAuthTokenData struct {
	AccessToken  Secret     `json:"access_token"`
	RefreshToken Secret     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (OAuthTokenData) CredentialType() CredentialType { return CredentialTypeOAuthToken }

// UsernamePasswordData holds a username/password pair.
type UsernamePasswordData struct {
	Username string `json:"username"`
	Password Secret `json:"password"`
}

func (UsernamePasswordData) CredentialType() CredentialType { return CredentialTypeUsernamePassword }

// Credential is a secret payload plus the metadata describing it.
type Credential struct {
	Metadata CredentialMetadata
	Data     CredentialData
}

// IsExpired reports whether the credential's validity window has passed.
// Credentials without an expiry never expire.
func (c *Credential) IsExpired(now time.Time) bool {
	if c.Metadata.ExpiresAt == nil {
		return false
	}
	return now.After(*c.Metadata.ExpiresAt)
}

// Validate checks that the payload variant agrees with the metadata type.
func (c *Credential) Validate() error {
	if c.Metadata.ID == "" {
		return fmt.Errorf("credential id cannot be empty")
	}
	if c.Data == nil {
		return fmt.Errorf("credential %q has no payload", c.Metadata.ID)
	}
	if got := c.Data.CredentialType(); got != c.Metadata.Type {
		return fmt.Errorf("credential %q payload type %q does not match metadata type %q",
			c.Metadata.ID, got, c.Metadata.Type)
	}
	return nil
}

// credentialEnvelope is the canonical serialized form of one credential.
// The payload variant is selected by metadata.type during decoding.
type credentialEnvelope struct {
	Metadata CredentialMetadata `json:"metadata"`
	Data     json.RawMessage    `json:"data"`
}

// MarshalJSON serializes the credential to its canonical form.
func (c Credential) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling credential payload: %w", err)
	}
	return json.Marshal(credentialEnvelope{Metadata: c.Metadata, Data: data})
}

// UnmarshalJSON deserializes the canonical form, selecting the payload
// variant from the metadata type.
func (c *Credential) UnmarshalJSON(raw []byte) error {
	var env credentialEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	var data CredentialData
	switch env.Metadata.Type {
	case CredentialTypeAPIKey:
		data = &APIKeyData{}
	case CredentialTypeOAuthToken:
		data = &OAuthTokenData{}
	case CredentialTypeUsernamePassword:
		data = &UsernamePasswordData{}
	default:
		return fmt.Errorf("unknown credential type %q", env.Metadata.Type)
	}

	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("unmarshaling %s payload: %w", env.Metadata.Type, err)
	}

	c.Metadata = env.Metadata
	c.Data = data
	return nil
}
