package oauth

import (
	"log/slog"
	"sync"
	"time"
)

// stateTTL is how long an issued state parameter stays valid. A callback
// arriving after this window is rejected even if the state was genuine.
const stateTTL = 10 * time.Minute

// StateStore tracks issued OAuth state parameters for CSRF protection.
//
// States are transient: they live in memory only, expire after stateTTL, and
// are consumed by exactly one successful callback. Expired states are pruned
// on every issue rather than by a background timer, so an idle process holds
// at most the states issued in its last active window.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time // state → issued at

	ttl time.Duration
	now func() time.Time
}

// NewStateStore creates a state store with the default 10-minute TTL.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]time.Time),
		ttl:    stateTTL,
		now:    time.Now,
	}
}

// Add records a newly issued state and prunes all expired ones.
func (ss *StateStore) Add(state string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.states[state] = ss.now()
	ss.pruneLocked()
}

// Contains reports whether the state is currently tracked and unexpired.
// An expired state is removed and reported as absent.
func (ss *StateStore) Contains(state string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	issuedAt, ok := ss.states[state]
	if !ok {
		return false
	}
	if ss.now().Sub(issuedAt) > ss.ttl {
		delete(ss.states, state)
		slog.Warn("oauth state expired", "age", ss.now().Sub(issuedAt))
		return false
	}
	return true
}

// Consume removes the state, guaranteeing one-time use.
func (ss *StateStore) Consume(state string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.states, state)
}

// Len returns the number of tracked states.
func (ss *StateStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.states)
}

func (ss *StateStore) pruneLocked() {
	now := ss.now()
	count := 0
	for state, issuedAt := range ss.states {
		if now.Sub(issuedAt) > ss.ttl {
			delete(ss.states, state)
			count++
		}
	}
	if count > 0 {
		slog.Debug("pruned expired oauth states", "count", count)
	}
}
