package storage

import (
	"context"

	"github.com/iudanet/commentauth/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns *UniqueViolationError (field "email" or "username") on duplicates
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByEmail retrieves user by lowercase email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByUsername retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// SetTwoFactor stores the 2FA flag and secret together.
	// A nil secret clears it.
	// Returns ErrUserNotFound if user doesn't exist
	SetTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error

	// DeleteUser deletes user by ID together with dependent rows
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error
}

// OAuthAccountStorage defines interface for federated identity links
type OAuthAccountStorage interface {
	// GetOAuthAccount retrieves the link for (provider, providerUserID)
	// Returns ErrOAuthAccountNotFound if no link exists
	GetOAuthAccount(ctx context.Context, provider, providerUserID string) (*models.OAuthAccount, error)

	// UpsertOAuthAccount inserts the link or, if (provider, provider_user_id)
	// already exists, refreshes its profile snapshot and tokens
	UpsertOAuthAccount(ctx context.Context, account *models.OAuthAccount) error
}
