package session

import "github.com/google/uuid"

// newTokenID returns the jti of a freshly issued token.
func newTokenID() string {
	return uuid.NewString()
}
