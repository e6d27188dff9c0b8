package oauth

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a callback carries a state parameter that
// was never issued, has expired, or was already consumed. This is the only
// CSRF defense: callbacks with an untracked state are rejected
// unconditionally.
var ErrInvalidState = errors.New("invalid state parameter")

// Provider operations, used to keep failure categories distinct.
const (
	OpExchange = "exchange"
	OpRefresh  = "refresh"
	OpUserInfo = "user_info"
)

// ProviderError reports a failed interaction with the OAuth provider: a
// rejected request, an unreachable endpoint, or an error reported inside a
// nominally successful response body.
type ProviderError struct {
	// Op is one of OpExchange, OpRefresh, OpUserInfo.
	Op string

	// StatusCode is the HTTP status of the provider response, 0 for
	// transport failures.
	StatusCode int

	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oauth %s failed: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("oauth %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
