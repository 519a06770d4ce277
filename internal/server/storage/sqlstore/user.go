package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

const userColumns = `id, email, username, password_hash, avatar_url, email_verified,
	two_factor_enabled, two_factor_secret, created_at, updated_at`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := s.rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		nullString(user.PasswordHash),
		nullString(user.AvatarURL),
		user.EmailVerified,
		user.TwoFactorEnabled,
		nullString(user.TwoFactorSecret),
		user.CreatedAt.Unix(),
		user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classify(err))
	}

	return nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, "id", userID)
}

// GetUserByEmail retrieves user by lowercase email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// getUser looks a user up by a unique column. column is never user input.
func (s *Storage) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)

	user, err := scanUser(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// SetTwoFactor stores the 2FA flag and secret together
func (s *Storage) SetTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error {
	query := s.rebind(`
		UPDATE users
		SET two_factor_enabled = ?, two_factor_secret = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := s.db.ExecContext(ctx, query, enabled, nullString(secret), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("failed to update two-factor settings: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// DeleteUser deletes user by ID; sessions, links, tokens and comments
// cascade.
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user                         models.User
		passwordHash, avatar, secret sql.NullString
		createdAt, updatedAt         int64
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&passwordHash,
		&avatar,
		&user.EmailVerified,
		&user.TwoFactorEnabled,
		&secret,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = stringPtr(passwordHash)
	user.AvatarURL = stringPtr(avatar)
	user.TwoFactorSecret = stringPtr(secret)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}
