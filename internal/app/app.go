package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tokenward/tokenward/internal/oauth"
	"github.com/tokenward/tokenward/internal/refresh"
	"github.com/tokenward/tokenward/internal/server"
	"github.com/tokenward/tokenward/internal/vault"
)

// App orchestrates the lifecycle of the credential vault, the OAuth flow,
// the HTTP server, and the token refresh scheduler.
type App struct {
	cfg       *Config
	server    *server.Server
	scheduler *refresh.Scheduler
}

// New creates a new App instance, wiring every component to one shared vault.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pass, err := cfg.Vault.ResolvePassphrase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault passphrase: %w", err)
	}

	store, err := vault.NewStore(cfg.Vault.Path, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential vault: %w", err)
	}

	manager := oauth.NewManager(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		UserInfoURL:  cfg.OAuth.UserInfoURL,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
	}, store)

	var scheduler *refresh.Scheduler
	if !cfg.Refresh.Disabled {
		scheduler = refresh.NewScheduler(store, manager,
			refresh.WithInterval(cfg.Refresh.Interval),
			refresh.WithMargin(cfg.Refresh.Margin),
		)
	}

	return &App{
		cfg:       cfg,
		server:    server.New(oauth.NewHandler(manager), store),
		scheduler: scheduler,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting http server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("http server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	if a.scheduler != nil {
		a.scheduler.Start()
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
			a.scheduler.Stop()
			return nil
		})
	}

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "http server runtime error", "error", err)
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services in reverse startup order
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
