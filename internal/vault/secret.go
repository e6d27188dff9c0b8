package vault

import (
	"encoding/json"
	"log/slog"
)

// Secret wraps a sensitive string to prevent accidental logging.
//
// String, GoString, and LogValue all return "[REDACTED]"; the real value is
// only available through Value(). JSON marshaling round-trips the real value:
// credentials are serialized exclusively inside authenticated-encryption
// envelopes, never into logs or API responses.
type Secret struct {
	value string
}

// NewSecret wraps the given value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Value returns the underlying secret. Use it only where the secret is
// actually needed (request bodies, headers); never log the result.
func (s Secret) Value() string {
	return s.value
}

// IsEmpty reports whether the secret holds no value.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return `vault.Secret{[REDACTED]}`
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// MarshalJSON writes the real value. Credential JSON exists only inside
// encrypted envelopes.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.value)
}

// UnmarshalJSON reads the real value.
func (s *Secret) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.value)
}
