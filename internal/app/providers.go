package app

import (
	"context"

	"userdir/internal/auth"
	"userdir/internal/auth/credentials"
	"userdir/internal/auth/provider"
	"userdir/internal/auth/provider/github"
	"userdir/internal/auth/provider/google"
	"userdir/internal/config"
	"userdir/internal/logger"
)

// setupProviders registers credentials always and each delegated provider
// only when its client id and secret are configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var (
		gh provider.OAuthProvider
		gg provider.OAuthProvider
	)

	if cfg.GitHubEnabled() {
		p, err := github.New(
			cfg.GitHubClientID,
			cfg.GitHubClientSecret,
			cfg.RedirectURL(auth.ProviderGitHub),
		)
		if err != nil {
			return nil, err
		}
		gh = p
	}

	if cfg.GoogleEnabled() {
		p, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.RedirectURL(auth.ProviderGoogle),
		)
		if err != nil {
			return nil, err
		}
		gg = p
	}

	registry := provider.NewRegistry(credentials.New(), gh, gg)
	logger.Info("identity providers ready", logger.Providers(registry.Names()))
	return registry, nil
}
