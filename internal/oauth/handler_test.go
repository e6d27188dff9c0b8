package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCallbackResponse(t *testing.T, rec *httptest.ResponseRecorder) callbackResponse {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body callbackResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_Authorize_RedirectsToProvider(t *testing.T) {
	provider, _ := newFakeProvider(t)
	m := newTestManager(t, provider)
	h := NewHandler(m)

	rec := httptest.NewRecorder()
	h.HandleAuthorize(rec, httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", location.Path)

	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.True(t, m.states.Contains(state))
}

func TestHandler_Callback_Success(t *testing.T) {
	provider, _ := newFakeProvider(t)
	m := newTestManager(t, provider)
	h := NewHandler(m)

	_, state := m.GetAuthorizationURL("")

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state="+state, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeCallbackResponse(t, rec)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Authentication successful", body.Message)
	require.NotNil(t, body.User)
	assert.Equal(t, "user-1", body.User.ID)

	// The credential landed in the vault under the identity-derived id.
	cred := m.store.Get("oauth_user-1")
	require.NotNil(t, cred)
}

func TestHandler_Callback_MissingParameters(t *testing.T) {
	provider, _ := newFakeProvider(t)
	h := NewHandler(newTestManager(t, provider))

	for _, target := range []string{
		"/oauth/callback",
		"/oauth/callback?code=auth-code",
		"/oauth/callback?state=some-state",
	} {
		rec := httptest.NewRecorder()
		h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, target, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeCallbackResponse(t, rec)
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "Missing code or state parameter", body.Message)
	}
}

func TestHandler_Callback_InvalidState(t *testing.T) {
	provider, _ := newFakeProvider(t)
	h := NewHandler(newTestManager(t, provider))

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state=never-issued", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeCallbackResponse(t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Invalid state parameter", body.Message)
}

func TestHandler_Callback_ProviderFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
	})
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	m := newTestManager(t, provider)
	h := NewHandler(m)
	_, state := m.GetAuthorizationURL("")

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code&state="+state, nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeCallbackResponse(t, rec)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Failed to complete authorization", body.Message)
}
