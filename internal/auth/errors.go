package auth

import "errors"

// Login errors.
var (
	ErrInvalidCredentialsFormat = errors.New("invalid credentials format")
	ErrProviderAuthFailed       = errors.New("provider authentication failed")
	ErrUnknownProvider          = errors.New("unknown provider")
)

// Access errors.
var (
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrStoreFailure wraps any persistence error met while resolving a user.
var ErrStoreFailure = errors.New("store failure")
