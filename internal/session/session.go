// Package session issues and validates stateless session tokens.
//
// A token is an HS256 JWT carrying the user id, email and display name. It
// is never stored server-side: validation is a signature check plus a clock
// comparison, so every request re-validates from scratch.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalid is the only validation outcome callers see. Expired,
	// forged and malformed tokens are indistinguishable.
	ErrInvalid = errors.New("session: invalid")

	ErrMissingSecret = errors.New("session: signing secret is required")
)

const (
	// DefaultTTL is the fixed session lifetime. There is no refresh.
	DefaultTTL = 30 * 24 * time.Hour

	issuer  = "userdir"
	keyInfo = "userdir session signing key"
	keySize = 32
)

// Subject is what a session asserts about the authenticated user.
type Subject struct {
	UserID string
	Email  string
	Name   string
}

// Claims is the token payload. The user id travels in the standard sub claim.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

// ExpiresAtTime returns the instant from which the token is no longer valid.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type Option func(*Manager)

// WithTTL overrides DefaultTTL. Sub-second precision is dropped.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl.Truncate(time.Second)
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager signs and validates session tokens with a key derived from the
// process secret.
type Manager struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		key: key,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl < time.Second {
		return nil, fmt.Errorf("session: ttl must be at least one second, got %s", m.ttl)
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m, nil
}

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return key, nil
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for sub, valid for checks in [now, now+ttl).
func (m *Manager) Issue(sub Subject) (string, *Claims, error) {
	if sub.UserID == "" {
		return "", nil, errors.New("session: subject has no user id")
	}

	issuedAt := m.now().Truncate(time.Second)
	claims := &Claims{
		Email: sub.Email,
		Name:  sub.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newTokenID(),
			Issuer:    issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", nil, fmt.Errorf("session: sign: %w", err)
	}
	return token, claims, nil
}

// Validate returns the claims of a well-formed, correctly signed, unexpired
// token and ErrInvalid for anything else.
func (m *Manager) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalid
	}

	claims := &Claims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// FromRequest resolves the session carried by the request cookie. It never
// blocks on I/O.
func (m *Manager) FromRequest(r *http.Request) (*Claims, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims, err := m.Validate(cookie.Value)
	if err != nil {
		return nil, false
	}
	return claims, true
}
