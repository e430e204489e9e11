package resolver

import (
	"context"
	"errors"
	"fmt"

	"userdir/internal/auth"
	"userdir/internal/logger"
	"userdir/internal/store"
)

// StoreResolver resolves identities against a store.Store.
//
// Email is the join key: one email maps to one user whatever provider
// reported it. Delegated identities are additionally linked by
// (provider, account id) so later logins resolve without the email lookup.
// Credential logins are never linked.
type StoreResolver struct {
	store store.Store
}

func NewStoreResolver(s store.Store) *StoreResolver {
	return &StoreResolver{store: s}
}

func (r *StoreResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (*store.User, error) {

	if identity == nil || identity.Email == "" {
		return nil, fmt.Errorf("%w: identity has no email", auth.ErrProviderAuthFailed)
	}

	log := logger.From(ctx).With(logger.Provider(identity.Provider))
	delegated := identity.Provider != auth.ProviderCredentials

	// 1. Known provider account.
	if delegated {
		u, err := r.store.FindUserByAccount(ctx, identity.Provider, identity.ProviderAccountID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, storeFailure(err)
		}
	}

	// 2. Existing user by email, or a new one.
	u, created, err := r.findOrCreate(ctx, identity.Email, identity.Name)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("user provisioned", logger.UserID(u.ID))
	}

	if !delegated {
		return u, nil
	}

	// 3. Link the provider account to the user.
	err = r.store.LinkAccount(ctx, store.Account{
		UserID:            u.ID,
		Provider:          identity.Provider,
		ProviderAccountID: identity.ProviderAccountID,
	})
	switch {
	case err == nil:
		log.Info("provider account linked", logger.UserID(u.ID))
		return u, nil
	case errors.Is(err, store.ErrConflict):
		// A concurrent login for the same account linked it first.
		linked, err := r.store.FindUserByAccount(ctx, identity.Provider, identity.ProviderAccountID)
		if err != nil {
			return nil, storeFailure(err)
		}
		return linked, nil
	default:
		return nil, storeFailure(err)
	}
}

// findOrCreate looks the user up by email and creates it when absent. A
// conflict on create means a concurrent first login won the race; the
// winner is re-read once.
func (r *StoreResolver) findOrCreate(ctx context.Context, email, name string) (*store.User, bool, error) {
	u, err := r.store.FindUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeFailure(err)
	}

	u, err = r.store.CreateUser(ctx, email, name)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, false, storeFailure(err)
	}

	u, err = r.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, false, storeFailure(err)
	}
	return u, false, nil
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", auth.ErrStoreFailure, err)
}
