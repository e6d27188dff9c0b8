// Package server hosts the HTTP surface: the OAuth authorize/callback
// endpoints, the credential listing, and health.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tokenward/tokenward/internal/oauth"
	"github.com/tokenward/tokenward/internal/vault"
)

// Server is the HTTP hosting layer the core exposes its endpoints to.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

var _ http.Handler = (*Server)(nil)

// New creates a server routing to the OAuth flow handler and the vault.
func New(oauthHandler *oauth.Handler, store *vault.Store) *Server {
	logger := slog.Default()

	mux := http.NewServeMux()

	wrap := func(h http.Handler) http.Handler {
		return applyMiddlewares(h,
			Logging(logger),
			Recovery,
		)
	}

	mux.Handle("GET /oauth/authorize", wrap(http.HandlerFunc(oauthHandler.HandleAuthorize)))
	mux.Handle("GET /oauth/callback", wrap(http.HandlerFunc(oauthHandler.HandleCallback)))
	mux.Handle("GET /credentials", wrap(credentialsHandler(store)))
	mux.Handle("GET /healthz", wrap(http.HandlerFunc(handleHealth)))

	return &Server{mux: mux}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
//
// Startup errors (port in use, permission denied) are returned directly;
// runtime errors are sent to the returned channel. The caller is responsible
// for calling Shutdown.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create the listener synchronously to catch port-in-use errors now.
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
