package resolver

import (
	"context"

	"userdir/internal/auth"
	"userdir/internal/store"
)

// Resolver determines which canonical user an identity belongs to,
// creating or linking the user when needed.
// It is the ONLY place where identity-to-user mapping logic lives.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (*store.User, error)
}
