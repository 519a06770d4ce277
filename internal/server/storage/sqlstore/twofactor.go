package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/commentauth/internal/models"
	"github.com/iudanet/commentauth/internal/server/storage"
)

// CreateTwoFactorToken stores a new single-use token
func (s *Storage) CreateTwoFactorToken(ctx context.Context, token *models.TwoFactorToken) error {
	query := s.rebind(`
		INSERT INTO two_factor_tokens (id, user_id, token, type, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		string(token.Type),
		token.ExpiresAt.Unix(),
		token.Used,
		token.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert two-factor token: %w", classify(err))
	}

	return nil
}

// ConsumeTwoFactorToken marks a matching token as used. The check and the
// update are one statement, so two concurrent consumers cannot both win.
func (s *Storage) ConsumeTwoFactorToken(
	ctx context.Context,
	userID, token string,
	tokenType models.TwoFactorTokenType,
	now time.Time,
) error {
	query := s.rebind(`
		UPDATE two_factor_tokens
		SET used = ?
		WHERE user_id = ? AND token = ? AND type = ? AND used = ? AND expires_at > ?
	`)

	result, err := s.db.ExecContext(ctx, query, true, userID, token, string(tokenType), false, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to consume two-factor token: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrTwoFactorTokenNotFound
	}

	return nil
}

// DeleteSpentTwoFactorTokens removes used and expired tokens
func (s *Storage) DeleteSpentTwoFactorTokens(ctx context.Context, now time.Time) (int, error) {
	query := s.rebind(`DELETE FROM two_factor_tokens WHERE used = ? OR expires_at <= ?`)

	result, err := s.db.ExecContext(ctx, query, true, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete spent two-factor tokens: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}
