package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]User
	byEmail  map[string]string
	accounts map[accountKey]Account
	now      func() time.Time
}

type accountKey struct {
	provider  string
	accountID string
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]User),
		byEmail:  make(map[string]string),
		accounts: make(map[accountKey]Account),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *Memory) FindUserByAccount(_ context.Context, provider, providerAccountID string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[accountKey{provider, providerAccountID}]
	if !ok {
		return nil, ErrNotFound
	}
	u, ok := m.users[a.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, email, name string) (*User, error) {
	key := normalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[key]; exists {
		return nil, ErrConflict
	}

	u := User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.TrimSpace(email),
		CreatedAt: m.now().UTC(),
	}
	m.users[u.ID] = u
	m.byEmail[key] = u.ID
	return &u, nil
}

func (m *Memory) LinkAccount(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[account.UserID]; !ok {
		return ErrNotFound
	}
	key := accountKey{account.Provider, account.ProviderAccountID}
	if _, exists := m.accounts[key]; exists {
		return ErrConflict
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = m.now().UTC()
	}
	m.accounts[key] = account
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.users, id)
	delete(m.byEmail, normalizeEmail(u.Email))
	for k, a := range m.accounts {
		if a.UserID == id {
			delete(m.accounts, k)
		}
	}
	return &u, nil
}

// Count returns the number of users.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
