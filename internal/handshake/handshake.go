// Package handshake keeps the server-side half of an in-flight OAuth login:
// the PKCE verifier and where to send the user afterwards, keyed by the
// random state parameter. Entries are short-lived and consumed once.
//
// This is login bookkeeping, not session state. Sessions stay stateless.
package handshake

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a user may spend at the provider.
const DefaultTTL = 5 * time.Minute

// ErrNotFound is returned for unknown, expired or already consumed states.
var ErrNotFound = errors.New("handshake: state not found")

// Entry is what the login step leaves for the callback step.
type Entry struct {
	Provider     string `json:"provider"`
	CodeVerifier string `json:"code_verifier"`
	CallbackURL  string `json:"callback_url"`
}

type Store interface {
	// Save records entry under state for ttl.
	Save(ctx context.Context, state string, entry Entry, ttl time.Duration) error

	// Take returns and removes the entry. A second Take for the same state
	// returns ErrNotFound.
	Take(ctx context.Context, state string) (*Entry, error)
}
