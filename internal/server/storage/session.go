package storage

import (
	"context"
	"time"

	"github.com/iudanet/commentauth/internal/models"
)

// SessionStorage defines interface for session persistence
type SessionStorage interface {
	// CreateSession stores a new session
	// Returns *UniqueViolationError (field "token") on token collision
	CreateSession(ctx context.Context, session *models.Session) error

	// GetSessionByToken retrieves session by token value, expired or not
	// Returns ErrSessionNotFound if session doesn't exist
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)

	// DeleteSession deletes session by token value
	// Deleting an absent session is not an error
	DeleteSession(ctx context.Context, token string) error

	// DeleteUserSessions deletes all sessions of a user
	// Returns number of deleted sessions
	DeleteUserSessions(ctx context.Context, userID string) (int, error)

	// DeleteExpiredSessions removes sessions with expires_at <= now
	// Returns number of deleted sessions
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// TwoFactorTokenStorage defines interface for single-use 2FA codes
type TwoFactorTokenStorage interface {
	// CreateTwoFactorToken stores a new token
	CreateTwoFactorToken(ctx context.Context, token *models.TwoFactorToken) error

	// ConsumeTwoFactorToken atomically marks a matching unused, unexpired
	// token of the user as used
	// Returns ErrTwoFactorTokenNotFound if nothing matched
	ConsumeTwoFactorToken(ctx context.Context, userID, token string, tokenType models.TwoFactorTokenType, now time.Time) error

	// DeleteSpentTwoFactorTokens removes used and expired tokens
	// Returns number of deleted tokens
	DeleteSpentTwoFactorTokens(ctx context.Context, now time.Time) (int, error)
}
