package provider

import (
	"fmt"

	"userdir/internal/auth"
)

// Registry holds the configured providers. Lookup is by explicit tag over
// a closed set; it performs no auth logic itself.
type Registry struct {
	credentials Provider
	github      OAuthProvider
	google      OAuthProvider
}

// NewRegistry registers the providers. Delegated providers may be nil when
// they are not configured.
func NewRegistry(credentials Provider, github, google OAuthProvider) *Registry {
	return &Registry{
		credentials: credentials,
		github:      github,
		google:      google,
	}
}

// Get returns the provider for a tag or ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	if name == auth.ProviderCredentials {
		if r.credentials == nil {
			return nil, fmt.Errorf("%w: %s", auth.ErrUnknownProvider, name)
		}
		return r.credentials, nil
	}
	return r.OAuth(name)
}

// OAuth returns a delegated provider for a tag or ErrUnknownProvider.
func (r *Registry) OAuth(name string) (OAuthProvider, error) {
	var p OAuthProvider
	switch name {
	case auth.ProviderGitHub:
		p = r.github
	case auth.ProviderGoogle:
		p = r.google
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", auth.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the configured provider tags in a stable order.
func (r *Registry) Names() []string {
	var names []string
	if r.credentials != nil {
		names = append(names, auth.ProviderCredentials)
	}
	if r.github != nil {
		names = append(names, auth.ProviderGitHub)
	}
	if r.google != nil {
		names = append(names, auth.ProviderGoogle)
	}
	return names
}
