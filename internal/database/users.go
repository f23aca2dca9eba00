package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrEmailTaken is returned when registering an address that already exists.
var ErrEmailTaken = errors.New("email already registered")

// User represents an obdai account. PasswordHash is empty for accounts that
// only sign in through the identity provider; ExternalID is empty for
// accounts that never did.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	ExternalID   string
	CreatedAt    time.Time
}

// HasPassword reports whether the user can sign in with email and password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

const userColumns = `id, email, COALESCE(password_hash, ''), COALESCE(external_id, ''), created_at`

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.ExternalID, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a password account. Returns ErrEmailTaken on a duplicate address.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	user, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash)
		 VALUES ($1, $2)
		 RETURNING `+userColumns,
		email, passwordHash,
	))
	if isUniqueViolation(err, "users_email_key") {
		return nil, ErrEmailTaken
	}
	return user, err
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
}

// GetUserByID retrieves a user by their ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
}

// GetUserByExternalID retrieves a user by identity provider subject.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	return scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`,
		externalID,
	))
}

// GetOrCreateExternalUser returns the user linked to externalID. An existing
// account with the same email is linked only when the provider verified the
// address; an unverified match returns ErrEmailTaken. Otherwise a
// passwordless account is created.
func (db *DB) GetOrCreateExternalUser(ctx context.Context, externalID, email string, emailVerified bool) (*User, error) {
	user, err := db.GetUserByExternalID(ctx, externalID)
	if err != nil || user != nil {
		return user, err
	}

	if email != "" && emailVerified {
		user, err = scanUser(db.pool.QueryRow(ctx,
			`UPDATE users SET external_id = $1
			 WHERE email = $2 AND external_id IS NULL
			 RETURNING `+userColumns,
			externalID, email,
		))
		if err != nil || user != nil {
			return user, err
		}
	}

	user, err = scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (email, external_id)
		 VALUES ($1, $2)
		 ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		 RETURNING `+userColumns,
		email, externalID,
	))
	if isUniqueViolation(err, "users_email_key") {
		return nil, ErrEmailTaken
	}
	return user, err
}

// DeleteUser deletes a user by ID. Vehicles and history cascade.
func (db *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	return err
}
