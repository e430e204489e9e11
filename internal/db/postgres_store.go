package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"userdir/internal/store"
)

const userColumns = `id, email, name, created_at`

// PostgresStore implements store.Store on the users/accounts tables.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var (
		u    store.User
		name sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &name, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Constraint)
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation
			return store.ErrNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *PostgresStore) FindUserByAccount(ctx context.Context, provider, providerAccountID string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.created_at
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		WHERE a.provider = $1
		  AND a.provider_account_id = $2
	`, provider, providerAccountID))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := []store.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, name string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		RETURNING `+userColumns,
		email, sql.NullString{String: name, Valid: name != ""},
	))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *PostgresStore) LinkAccount(ctx context.Context, account store.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, provider, provider_account_id)
		VALUES ($1, $2, $3)
	`,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
	)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) (*store.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		DELETE FROM users
		WHERE id = $1
		RETURNING `+userColumns,
		id,
	))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}
