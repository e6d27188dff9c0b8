package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/tokenward/tokenward/internal/vault"
)

// requestTimeout bounds every call to the provider. Remote failures surface
// immediately; nothing in the flow blocks indefinitely.
const requestTimeout = 10 * time.Second

// Config holds the provider configuration for the authorization-code flow.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURI  string
	Scopes       []string
}

// TokenResponse is the provider's token endpoint response, for both code
// exchange and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// UserInfo is the provider's identity for the bearer-authenticated user.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CallbackResult bundles the outcome of a successful callback.
type CallbackResult struct {
	Token    *TokenResponse
	UserInfo *UserInfo
}

// Manager drives one provider's authorization-code OAuth flow and keeps
// identity-linked credentials up to date in the vault.
type Manager struct {
	cfg    Config
	store  *vault.Store
	states *StateStore
	client *http.Client

	now func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) {
		m.client = client
	}
}

// WithClock overrides the manager's time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an OAuth flow manager writing through the given vault.
func NewManager(cfg Config, store *vault.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		states: NewStateStore(),
		client: &http.Client{Timeout: requestTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetAuthorizationURL returns the provider's authorization URL and the state
// parameter bound to it. A fresh opaque state is generated when none is
// supplied. Issuing a state also prunes all expired ones.
func (m *Manager) GetAuthorizationURL(state string) (string, string) {
	if state == "" {
		state = uuid.NewString()
	}
	m.states.Add(state)

	authCfg := &oauth2.Config{
		ClientID:    m.cfg.ClientID,
		RedirectURL: m.cfg.RedirectURI,
		Scopes:      m.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.cfg.AuthURL,
			TokenURL: m.cfg.TokenURL,
		},
	}
	url := authCfg.AuthCodeURL(state)

	slog.Debug("generated authorization URL", "state", state)
	return url, state
}

// HandleCallback validates the callback state, exchanges the code for
// tokens, and fetches the user's identity.
//
// An untracked state fails with ErrInvalidState. The state is consumed only
// after a successful exchange, so a replayed callback always fails after the
// first success while a transport failure leaves the state retryable within
// its TTL. Exchange and identity failures are reported as *ProviderError,
// never conflated with invalid state.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (*CallbackResult, error) {
	if !m.states.Contains(state) {
		slog.Warn("oauth callback with invalid state")
		return nil, ErrInvalidState
	}

	token, err := m.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// One-time use: the state dies with the first successful exchange.
	m.states.Consume(state)

	userInfo, err := m.GetUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	return &CallbackResult{Token: token, UserInfo: userInfo}, nil
}

// ExchangeCode exchanges an authorization code for tokens. A non-success
// response or transport failure is a hard failure with no retry.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	payload := map[string]string{
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"redirect_uri":  m.cfg.RedirectURI,
		"code":          code,
		"grant_type":    "authorization_code",
	}
	return m.requestToken(ctx, OpExchange, payload)
}

// RefreshToken obtains a new token pair using a refresh token.
func (m *Manager) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	payload := map[string]string{
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	}
	return m.requestToken(ctx, OpRefresh, payload)
}

func (m *Manager) requestToken(ctx context.Context, op string, payload map[string]string) (*TokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("token endpoint rejected request", "op", op, "status", resp.StatusCode, "response", string(respBody))
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("token endpoint rejected request")}
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &ProviderError{Op: op, Err: fmt.Errorf("decoding token response: %w", err)}
	}
	return &token, nil
}

// userInfoQuery asks the provider's GraphQL identity endpoint for the
// bearer-authenticated user.
const userInfoQuery = `query { viewer { id name email } }`

// GetUserInfo fetches the identity behind an access token. An error reported
// inside a 200 response body is treated the same as a transport failure.
func (m *Manager) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	body, err := json.Marshal(map[string]string{"query": userInfoQuery})
	if err != nil {
		return nil, &ProviderError{Op: OpUserInfo, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.UserInfoURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Op: OpUserInfo, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: OpUserInfo, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("identity endpoint rejected request", "status", resp.StatusCode, "response", string(respBody))
		return nil, &ProviderError{Op: OpUserInfo, StatusCode: resp.StatusCode, Err: fmt.Errorf("identity endpoint rejected request")}
	}

	var result struct {
		Data struct {
			Viewer UserInfo `json:"viewer"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProviderError{Op: OpUserInfo, Err: fmt.Errorf("decoding identity response: %w", err)}
	}
	if len(result.Errors) > 0 {
		slog.Error("identity endpoint returned errors", "message", result.Errors[0].Message)
		return nil, &ProviderError{Op: OpUserInfo, StatusCode: resp.StatusCode, Err: fmt.Errorf("identity query failed: %s", result.Errors[0].Message)}
	}
	if result.Data.Viewer.ID == "" {
		return nil, &ProviderError{Op: OpUserInfo, Err: fmt.Errorf("identity response missing user id")}
	}

	return &result.Data.Viewer, nil
}

// ValidateToken is a best-effort probe: it reports whether the token can
// fetch an identity, swallowing the underlying error.
func (m *Manager) ValidateToken(ctx context.Context, accessToken string) bool {
	_, err := m.GetUserInfo(ctx, accessToken)
	return err == nil
}

// StoreToken writes a credential for the token through the vault. The
// credential id is derived from the user's stable identity, so re-authorizing
// the same user overwrites instead of duplicating.
func (m *Manager) StoreToken(token *TokenResponse, userInfo *UserInfo) (string, error) {
	credentialID := "oauth_" + userInfo.ID
	now := m.now()

	var expiresAt *time.Time
	if token.ExpiresIn > 0 {
		t := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	cred := &vault.Credential{
		Metadata: vault.CredentialMetadata{
			ID:          credentialID,
			Name:        fmt.Sprintf("OAuth token - %s", userInfo.Name),
			Type:        vault.CredentialTypeOAuthToken,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   expiresAt,
			Description: fmt.Sprintf("OAuth token for %s", userInfo.Email),
			Labels: map[string]string{
				"user_id":    userInfo.ID,
				"user_name":  userInfo.Name,
				"user_email": userInfo.Email,
				"scope":      token.Scope,
			},
		},
		Data: &vault.OAuthTokenData{
			AccessToken:  vault.NewSecret(token.AccessToken),
			RefreshToken: vault.NewSecret(token.RefreshToken),
			TokenType:    token.TokenType,
			ExpiresAt:    expiresAt,
		},
	}

	if err := m.store.Store(cred); err != nil {
		return "", fmt.Errorf("storing oauth credential: %w", err)
	}

	slog.Info("stored oauth token", "user_id", userInfo.ID, "user_name", userInfo.Name)
	return credentialID, nil
}
