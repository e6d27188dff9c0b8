package server

import (
	"net/http"

	"github.com/tokenward/tokenward/internal/vault"
)

// credentialListResponse carries credential metadata only; secret payloads
// are never serialized to the HTTP surface.
type credentialListResponse struct {
	Credentials []vault.CredentialMetadata `json:"credentials"`
	Skipped     int                        `json:"skipped"`
}

// credentialsHandler lists stored credential metadata. The skipped count
// surfaces entries that failed to decrypt so corruption is visible to
// operators instead of silently dropped.
func credentialsHandler(store *vault.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metas, skipped := store.List()
		writeJSON(r.Context(), w, credentialListResponse{
			Credentials: metas,
			Skipped:     skipped,
		}, http.StatusOK)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
}
