package credentials

import (
	"context"
	"fmt"
	"strings"

	"userdir/internal/auth"
	"userdir/internal/auth/provider"
)

const providerName = auth.ProviderCredentials

// Provider implements the first-party email/password login.
//
// Both fields must be present and be strings. The password is NOT compared
// against anything: users are provisioned just-in-time by email when the
// resolver first sees them. See DESIGN.md, "password verification".
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// Verify checks the shape of the payload and returns an identity keyed by
// email. It never touches the store.
func (p *Provider) Verify(_ context.Context, payload provider.Payload) (*auth.Identity, error) {
	email, ok := payload.String("email")
	if !ok {
		return nil, fmt.Errorf("%w: email must be a string", auth.ErrInvalidCredentialsFormat)
	}
	if _, ok := payload.String("password"); !ok {
		return nil, fmt.Errorf("%w: password must be a string", auth.ErrInvalidCredentialsFormat)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is empty", auth.ErrInvalidCredentialsFormat)
	}

	return &auth.Identity{
		Provider:          providerName,
		ProviderAccountID: strings.ToLower(email),
		Email:             email,
	}, nil
}
