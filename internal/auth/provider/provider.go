package provider

import (
	"context"

	"userdir/internal/auth"
)

// Payload carries the provider-specific login input. Values keep the shape
// they arrived in so providers can reject malformed input themselves.
type Payload map[string]any

// Payload keys understood by the delegated providers.
const (
	PayloadCode         = "code"
	PayloadCodeVerifier = "code_verifier"
)

// String returns the value under key if it is a string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Provider is the contract every identity provider implements.
// Implementations return identity facts only and must not perform user
// creation, linking, or session management.
type Provider interface {
	// Name returns the provider tag (see auth.Provider*).
	Name() string

	// Verify produces a verified identity or fails. It never partially
	// authenticates.
	Verify(ctx context.Context, payload Payload) (*auth.Identity, error)
}

// OAuthProvider is a provider that delegates the handshake to a third party
// using the authorization-code flow.
type OAuthProvider interface {
	Provider

	// AuthCodeURL returns the authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string
}
