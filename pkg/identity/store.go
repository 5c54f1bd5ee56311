package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store handles user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new identity store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, user *User, apiToken string) error {
	query := `
		INSERT INTO users (username, email, full_name, is_elevated, is_active, api_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.FullName,
		user.IsElevated,
		user.IsActive,
		apiToken,
		now,
		now,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, username, email, full_name, is_elevated, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByToken retrieves a user by API token; used by the auth middleware
func (s *Store) GetUserByToken(ctx context.Context, token string) (*User, error) {
	query := `
		SELECT id, username, email, full_name, is_elevated, is_active, created_at, updated_at
		FROM users
		WHERE api_token = $1 AND is_active
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, token))
}

// SetElevated toggles the institutional-admin override for a user
func (s *Store) SetElevated(ctx context.Context, userID int64, elevated bool) error {
	query := `UPDATE users SET is_elevated = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, elevated, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrUserNotFound)
	}

	return nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var user User
	var email, fullName sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&email,
		&fullName,
		&user.IsElevated,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	if fullName.Valid {
		user.FullName = fullName.String
	}

	return &user, nil
}
