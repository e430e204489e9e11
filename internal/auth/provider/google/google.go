package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"userdir/internal/auth"
	"userdir/internal/auth/provider"
	"userdir/internal/logger"
)

const (
	providerName  = auth.ProviderGoogle
	defaultIssuer = "https://accounts.google.com"
)

type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

type options struct {
	issuer string
}

type Option func(*options)

// WithIssuer points discovery at another OpenID provider.
func WithIssuer(issuer string) Option {
	return func(o *options) { o.issuer = issuer }
}

// New runs OIDC discovery against the issuer, so it needs network access.
func New(
	ctx context.Context,
	clientID string,
	clientSecret string,
	redirectURL string,
	opts ...Option,
) (*Provider, error) {

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	o := options{issuer: defaultIssuer}
	for _, opt := range opts {
		opt(&o)
	}

	oidcProvider, err := oidc.NewProvider(ctx, o.issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes: []string{
			oidc.ScopeOpenID,
			"profile",
			"email",
		},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		verifier:    verifier,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Verify exchanges the authorization code, verifies the returned ID token
// and maps its claims to an identity.
func (p *Provider) Verify(ctx context.Context, payload provider.Payload) (*auth.Identity, error) {
	log := logger.From(ctx).With(logger.Provider(providerName))

	code, _ := payload.String(provider.PayloadCode)
	verifier, _ := payload.String(provider.PayloadCodeVerifier)
	if code == "" || verifier == "" {
		return nil, fmt.Errorf("%w: google: missing code or verifier", auth.ErrProviderAuthFailed)
	}

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		log.Warn("google token exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: google token exchange: %w", auth.ErrProviderAuthFailed, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: google did not return id_token", auth.ErrProviderAuthFailed)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		log.Warn("google id_token verification failed", logger.Err(err))
		return nil, fmt.Errorf("%w: google id_token: %w", auth.ErrProviderAuthFailed, err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: google id_token claims: %w", auth.ErrProviderAuthFailed, err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: google id_token missing required claims", auth.ErrProviderAuthFailed)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: google email not verified", auth.ErrProviderAuthFailed)
	}

	log.Debug("google oidc verified",
		zap.String("issuer", idToken.Issuer),
		zap.Strings("audience", idToken.Audience),
		zap.Int64("expiry_unix", idToken.Expiry.Unix()),
	)

	return &auth.Identity{
		Provider:          providerName,
		ProviderAccountID: claims.Subject,
		Email:             claims.Email,
		Name:              claims.Name,
		EmailVerified:     claims.EmailVerified,
	}, nil
}
