// Package refresh keeps OAuth credentials fresh by periodically refreshing
// tokens that approach their expiry.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tokenward/tokenward/internal/oauth"
	"github.com/tokenward/tokenward/internal/vault"
)

const (
	// DefaultInterval is the fixed time between scheduler passes. There is
	// deliberately no backoff or jitter: a failed refresh is simply retried
	// on the next tick.
	DefaultInterval = 60 * time.Second

	// DefaultMargin is the safety window before actual expiry within which a
	// token is proactively refreshed.
	DefaultMargin = 10 * time.Minute
)

// CredentialSource is the slice of the vault the scheduler scans.
type CredentialSource interface {
	FindByType(credType vault.CredentialType) ([]*vault.Credential, int)
	Store(cred *vault.Credential) error
}

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error)
}

// Scheduler periodically scans the vault for near-expiry OAuth credentials
// and refreshes them. Each pass is sequential: no two refreshes for the same
// credential (or any credential) run concurrently within a process.
type Scheduler struct {
	source    CredentialSource
	refresher TokenRefresher
	interval  time.Duration
	margin    time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval overrides the tick interval.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

// WithMargin overrides the refresh safety margin.
func WithMargin(margin time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.margin = margin
	}
}

// WithClock overrides the scheduler's time source. Used by tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(source CredentialSource, refresher TokenRefresher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source:    source,
		refresher: refresher,
		interval:  DefaultInterval,
		margin:    DefaultMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the refresh loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("token refresh scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx)
	slog.Info("token refresh scheduler started", "interval", s.interval, "margin", s.margin)
}

// Stop cancels the loop and waits for it to fully terminate. Once Stop
// returns, no refresh begins, even if a tick was imminent. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		slog.Warn("token refresh scheduler not running")
		return
	}

	s.cancel()
	<-s.done
	s.running = false
	slog.Info("token refresh scheduler stopped")
}

// run ticks at the fixed interval until the context is canceled. The select
// makes the sleep interruptible, so Stop returns promptly instead of waiting
// out a full interval.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshDueCredentials(ctx)
		}
	}
}

// refreshDueCredentials performs one scheduler pass. Per-credential failures
// are logged and left for the next tick; they never abort the pass.
func (s *Scheduler) refreshDueCredentials(ctx context.Context) {
	creds, skipped := s.source.FindByType(vault.CredentialTypeOAuthToken)
	if skipped > 0 {
		slog.Warn("unreadable credentials skipped during refresh scan", "count", skipped)
	}

	for _, cred := range creds {
		if ctx.Err() != nil {
			return
		}

		data, ok := cred.Data.(*vault.OAuthTokenData)
		if !ok {
			slog.Error("oauth credential carries wrong payload type", "id", cred.Metadata.ID)
			continue
		}
		if !s.isDue(data) {
			continue
		}

		if err := s.refreshCredential(ctx, cred, data); err != nil {
			slog.Error("failed to refresh token, will retry next tick", "id", cred.Metadata.ID, "error", err)
		}
	}
}

// isDue reports whether the token's margin-adjusted expiry has passed and it
// carries a refresh token. Tokens without either are left untouched.
func (s *Scheduler) isDue(data *vault.OAuthTokenData) bool {
	if data.ExpiresAt == nil || data.RefreshToken.IsEmpty() {
		return false
	}
	return !data.ExpiresAt.Add(-s.margin).After(s.now())
}

// refreshCredential exchanges the refresh token and persists a brand-new
// credential under the same id: creation time and labels survive, updated_at
// advances, expires_at is recomputed from the new response.
func (s *Scheduler) refreshCredential(ctx context.Context, cred *vault.Credential, data *vault.OAuthTokenData) error {
	token, err := s.refresher.RefreshToken(ctx, data.RefreshToken.Value())
	if err != nil {
		return err
	}

	now := s.now()
	var expiresAt *time.Time
	if token.ExpiresIn > 0 {
		t := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	updated := &vault.Credential{
		Metadata: vault.CredentialMetadata{
			ID:          cred.Metadata.ID,
			Name:        cred.Metadata.Name,
			Type:        cred.Metadata.Type,
			CreatedAt:   cred.Metadata.CreatedAt,
			UpdatedAt:   now,
			ExpiresAt:   expiresAt,
			Description: cred.Metadata.Description,
			Labels:      cred.Metadata.Labels,
		},
		Data: &vault.OAuthTokenData{
			AccessToken:  vault.NewSecret(token.AccessToken),
			RefreshToken: vault.NewSecret(token.RefreshToken),
			TokenType:    token.TokenType,
			ExpiresAt:    expiresAt,
		},
	}

	if err := s.source.Store(updated); err != nil {
		return err
	}

	slog.Info("refreshed oauth token", "id", cred.Metadata.ID, "expires_at", expiresAt)
	return nil
}
