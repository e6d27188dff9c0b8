package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler exposes the authorize/callback endpoints to the hosting layer.
type Handler struct {
	manager *Manager
}

// NewHandler creates the HTTP handler for the OAuth flow.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// callbackResponse is the JSON body returned by the callback endpoint.
type callbackResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	User    *UserInfo `json:"user,omitempty"`
}

// HandleAuthorize redirects the browser to the provider's authorization page.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	authURL, _ := h.manager.GetAuthorizationURL("")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback completes the flow: validates state, exchanges the code,
// fetches the identity, and persists the resulting credential. Internal
// failure details are logged, never echoed to the caller.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeCallbackError(r.Context(), w, "Missing code or state parameter", http.StatusBadRequest)
		return
	}

	result, err := h.manager.HandleCallback(r.Context(), code, state)
	switch {
	case errors.Is(err, ErrInvalidState):
		writeCallbackError(r.Context(), w, "Invalid state parameter", http.StatusBadRequest)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "oauth callback failed", "error", err)
		writeCallbackError(r.Context(), w, "Failed to complete authorization", http.StatusBadGateway)
		return
	}

	if _, err := h.manager.StoreToken(result.Token, result.UserInfo); err != nil {
		slog.ErrorContext(r.Context(), "failed to persist oauth credential", "error", err)
		writeCallbackError(r.Context(), w, "Failed to store credential", http.StatusInternalServerError)
		return
	}

	writeCallbackJSON(r.Context(), w, callbackResponse{
		Status:  "success",
		Message: "Authentication successful",
		User:    result.UserInfo,
	}, http.StatusOK)
}

func writeCallbackJSON(ctx context.Context, w http.ResponseWriter, body callbackResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode callback response", "error", err)
	}
}

func writeCallbackError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeCallbackJSON(ctx, w, callbackResponse{Status: "error", Message: message}, status)
}
