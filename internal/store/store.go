// Package store defines the persistence collaborator for users and their
// linked provider accounts.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")
)

// User is the canonical principal. Email is unique, compared
// case-insensitively.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Account binds a provider-scoped account to a user.
// (Provider, ProviderAccountID) is unique.
type Account struct {
	UserID            string
	Provider          string
	ProviderAccountID string
	CreatedAt         time.Time
}

type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// CreateUser returns ErrConflict when the email is already taken.
	CreateUser(ctx context.Context, email, name string) (*User, error)

	// LinkAccount returns ErrConflict when the provider account is already
	// linked and ErrNotFound when the user does not exist.
	LinkAccount(ctx context.Context, account Account) error

	// DeleteUser removes the user and its accounts, returning the deleted
	// user or ErrNotFound.
	DeleteUser(ctx context.Context, id string) (*User, error)
}
